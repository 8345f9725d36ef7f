package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/improv-battle/internal/hub"
	"github.com/DoyleJ11/improv-battle/internal/relay"
	"github.com/DoyleJ11/improv-battle/internal/ws"
)

func newServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zaptest.NewLogger(t)
	h := hub.NewHub(ctx, log)
	srv := httptest.NewServer(SetupRoutes(h, log, ws.Options{}))
	t.Cleanup(srv.Close)
	return srv, h
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCreateRoom_ThenGetIt(t *testing.T) {
	srv, _ := newServer(t)

	res, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotEmpty(t, created.Code)

	res2, err := http.Get(srv.URL + "/rooms/" + created.Code)
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusOK, res2.StatusCode)

	var view relay.View
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&view))
	assert.Equal(t, created.Code, view.Code)
	assert.Empty(t, view.Participants)
}

func TestGetRoom_NotFound(t *testing.T) {
	srv, _ := newServer(t)

	res, err := http.Get(srv.URL + "/rooms/NOPE42")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestWebsocketRoute_RejectsPlainHTTP(t *testing.T) {
	srv, _ := newServer(t)

	res, err := http.Get(srv.URL + "/rooms/ABC123/ws")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.GreaterOrEqual(t, res.StatusCode, 400)
}

func TestCreateRoom_AfterHubShutdown(t *testing.T) {
	srv, h := newServer(t)
	h.Inbox() <- hub.ShutdownHub{}
	<-h.Done()

	client := &http.Client{Timeout: 2 * time.Second}
	res, err := client.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err, "handler must not hang once the hub is gone")
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
