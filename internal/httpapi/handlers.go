package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/hub"
	"github.com/DoyleJ11/improv-battle/internal/relay"
)

const maxCodeAttempts = 8

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}

			reply := make(chan *relay.Room, 1)
			select {
			case h.Inbox() <- hub.CreateRoom{Code: code, Reply: reply}:
			case <-h.Done():
				http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
				return
			case <-r.Context().Done():
				return
			}

			var room *relay.Room
			select {
			case room = <-reply:
			case <-h.Done():
				http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
				return
			case <-r.Context().Done():
				return
			}
			if room == nil {
				log.Debug("collision on room code, regenerating", zap.String("code", code))
				continue
			}

			writeJSON(w, http.StatusCreated, struct {
				Code string `json:"code"`
			}{Code: code})
			return
		}
		http.Error(w, "failed to create room", http.StatusInternalServerError)
	}
}

func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := h.Room(r.Context(), chi.URLParam(r, "code"), false)
		if room == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		reply := make(chan relay.View, 1)
		if !room.Send(ctx, relay.GetState{Reply: reply}) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, v)
		case <-room.Done():
			http.Error(w, "room not found", http.StatusNotFound)
		case <-ctx.Done():
			http.Error(w, "room busy", http.StatusServiceUnavailable)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
