package relay

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ParticipantID string
	Outbox        chan types.Frame // frames for this participant, closed by the room
}

func (Join) isRoomMsg() {}

type Leave struct{ ParticipantID string }

func (Leave) isRoomMsg() {}

// Publish forwards Frame to every participant except From.
type Publish struct {
	From  string
	Frame types.Frame
}

func (Publish) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// Retire shuts the room down if nobody is in it.
type Retire struct{}

func (Retire) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	Code         string   `json:"code"`
	Participants []string `json:"participants"`
	Forwarded    int      `json:"forwarded"`
}

// Room relays data frames between the participants of one game room. All
// room state is owned by the loop goroutine.
type Room struct {
	code         string
	inbox        chan Msg
	participants map[string]chan types.Frame
	forwarded    int
	onEmpty      func(*Room)
	log          *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewRoom starts a room. onEmpty, if set, is called from the room goroutine
// whenever the last participant leaves; it must not block.
func NewRoom(parent context.Context, code string, log *zap.Logger, onEmpty func(*Room)) *Room {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		code:         code,
		inbox:        make(chan Msg, 64),
		participants: make(map[string]chan types.Frame),
		onEmpty:      onEmpty,
		log:          log.With(zap.String("room", code)),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go r.loop()
	return r
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.participants[msg.ParticipantID] = msg.Outbox
				r.deliver(msg.ParticipantID, msg.Outbox, types.Frame{
					Kind:     types.KindWelcome,
					Identity: msg.ParticipantID,
					Room:     r.code,
				})
				r.log.Info("participant joined",
					zap.String("participant", msg.ParticipantID),
					zap.Int("participants", len(r.participants)))

			case Leave:
				if ch, ok := r.participants[msg.ParticipantID]; ok {
					close(ch)
					delete(r.participants, msg.ParticipantID)
					r.log.Info("participant left", zap.String("participant", msg.ParticipantID))
					r.checkEmpty()
				}

			case Publish:
				if _, ok := r.participants[msg.From]; !ok {
					break
				}
				f := msg.Frame
				f.Kind = types.KindData
				f.From = msg.From
				r.forwarded++
				for id, ch := range r.participants {
					if id == msg.From {
						continue
					}
					r.deliver(id, ch, f)
				}

			case GetState:
				msg.Reply <- r.view()

			case Retire:
				if len(r.participants) > 0 {
					r.log.Debug("room not retired, participants remain", zap.Int("participants", len(r.participants)))
					break
				}
				r.log.Info("room retired")
				r.shutdown()
				return

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// deliver never blocks the loop: a participant that cannot keep up is dropped.
func (r *Room) deliver(id string, ch chan types.Frame, f types.Frame) {
	select {
	case ch <- f:
	default:
		close(ch)
		delete(r.participants, id)
		r.log.Warn("dropping slow participant", zap.String("participant", id))
		r.checkEmpty()
	}
}

func (r *Room) checkEmpty() {
	if len(r.participants) == 0 && r.onEmpty != nil {
		r.onEmpty(r)
	}
}

func (r *Room) view() View {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return View{Code: r.code, Participants: ids, Forwarded: r.forwarded}
}

func (r *Room) shutdown() {
	for id, ch := range r.participants {
		close(ch)
		delete(r.participants, id)
	}
	r.cancel()
}

// Inbox exposes the room's mailbox.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Send posts msg unless ctx ends or the room has shut down first.
func (r *Room) Send(ctx context.Context, msg Msg) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- msg:
		return true
	case <-r.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Code() string { return r.code }
