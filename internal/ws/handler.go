package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/hub"
	"github.com/DoyleJ11/improv-battle/internal/relay"
	"github.com/DoyleJ11/improv-battle/internal/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
	readLimit    = 1 << 20
)

type Options struct {
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

// Handler joins the caller to the room named by the {code} URL parameter and
// relays frames until either side goes away.
func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		if h.Room(r.Context(), code, true) == nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		identity := uuid.NewString()
		plog := log.With(zap.String("room", code), zap.String("participant", identity))

		out := make(chan types.Frame, outboxSize)
		room := join(r.Context(), h, code, relay.Join{ParticipantID: identity, Outbox: out})
		if room == nil {
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer room.Send(context.Background(), relay.Leave{ParticipantID: identity})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := wsjson.Write(ctx, conn, f)
				cancel()
				if err != nil {
					plog.Debug("write to participant failed", zap.Error(err))
				}
			}
			// Room closed our outbox: we were dropped or the room shut down.
			conn.Close(websocket.StatusGoingAway, "removed from room")
		}()

		// Reader loop
		for {
			var f types.Frame
			if err := wsjson.Read(r.Context(), conn, &f); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					plog.Debug("participant read ended", zap.Error(err))
				}
				return
			}

			if f.Kind != types.KindData {
				_ = wsjson.Write(r.Context(), conn, types.Frame{Kind: types.KindError, Error: "unsupported frame kind"})
				continue
			}
			if f.Topic == "" {
				_ = wsjson.Write(r.Context(), conn, types.Frame{Kind: types.KindError, Error: "missing topic"})
				continue
			}

			if !room.Send(r.Context(), relay.Publish{From: identity, Frame: f}) {
				return
			}
		}
	}
}

// join adds the participant to the room for code. An empty room may retire
// between lookup and join, so a refused join is retried once on a fresh room.
func join(ctx context.Context, h *hub.Hub, code string, msg relay.Join) *relay.Room {
	for attempt := 0; attempt < 2; attempt++ {
		room := h.Room(ctx, code, true)
		if room == nil {
			return nil
		}
		if room.Send(ctx, msg) {
			return room
		}
	}
	return nil
}
