package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/relay"
)

type HubMsg interface{ isHubMsg() }

// CreateRoom replies nil when Code is already taken.
type CreateRoom struct {
	Code  string
	Reply chan *relay.Room
}

type GetRoom struct {
	Code  string
	Reply chan *relay.Room
}

// EnsureRoom returns the room for Code, creating it on first use.
type EnsureRoom struct {
	Code  string
	Reply chan *relay.Room
}

// RemoveRoom retires the room for Code. When Room is set the entry is only
// removed if it still maps to that room, so a stale notice cannot take out a
// newer room under the same code. The room itself shuts down only if it has
// no participants.
type RemoveRoom struct {
	Code string
	Room *relay.Room
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*relay.Room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*relay.Room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Room asks the hub for a room and waits for the answer. create selects
// EnsureRoom over GetRoom. The result is nil when the room does not exist or
// the hub is gone.
func (h *Hub) Room(ctx context.Context, code string, create bool) *relay.Room {
	reply := make(chan *relay.Room, 1)
	var msg HubMsg = GetRoom{Code: code, Reply: reply}
	if create {
		msg = EnsureRoom{Code: code, Reply: reply}
	}

	select {
	case h.inbox <- msg:
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if h.rooms[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.ensure(msg.Code)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case EnsureRoom:
				msg.Reply <- h.ensure(msg.Code)

			case RemoveRoom:
				r := h.rooms[msg.Code]
				if msg.Room != nil && msg.Room != r {
					// Not ours any more; still make sure the stale room goes.
					msg.Room.Send(h.ctx, relay.Retire{})
					break
				}
				if r != nil {
					delete(h.rooms, msg.Code)
					r.Send(h.ctx, relay.Retire{})
					h.log.Info("room removed", zap.String("room", msg.Code))
				}

			case ListRooms:
				codes := make([]string, 0, len(h.rooms))
				for code := range h.rooms {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) ensure(code string) *relay.Room {
	if r := h.rooms[code]; r != nil {
		return r
	}
	r := relay.NewRoom(h.ctx, code, h.log, h.roomEmpty)
	h.rooms[code] = r
	h.log.Info("room created", zap.String("room", code))
	return r
}

// roomEmpty runs on the room's goroutine, so it must not block: if the hub
// inbox is full the room simply stays around.
func (h *Hub) roomEmpty(r *relay.Room) {
	select {
	case h.inbox <- RemoveRoom{Code: r.Code(), Room: r}:
	case <-h.ctx.Done():
	default:
		h.log.Warn("hub busy, keeping empty room", zap.String("room", r.Code()))
	}
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.Send(context.Background(), relay.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
