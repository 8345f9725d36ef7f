// Package session runs one improv-battle game from the player's side.
//
// A Session owns the game state and everything derived from it. Inbound
// payloads, connection signals and player actions are messages on its inbox,
// handled one at a time in arrival order by a single goroutine, so a
// reduction always sees the state left by the one before it.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/codec"
	"github.com/DoyleJ11/improv-battle/internal/game"
	"github.com/DoyleJ11/improv-battle/internal/protocol"
	"github.com/DoyleJ11/improv-battle/internal/transport"
)

var ErrSessionEnded = errors.New("session ended")

type Msg interface{ isSessionMsg() }

// Inbound carries one payload as the data channel delivered it.
type Inbound struct{ Payload any }

func (Inbound) isSessionMsg() {}

type ConnectionChanged struct{ State transport.ConnState }

func (ConnectionChanged) isSessionMsg() {}

type IdentityKnown struct{ Identity string }

func (IdentityKnown) isSessionMsg() {}

// ChannelAttached hands the session its outbound handle. A nil Channel
// detaches the current one.
type ChannelAttached struct{ Channel transport.Channel }

func (ChannelAttached) isSessionMsg() {}

type Action string

const (
	ActionStartImprov Action = "start_improv"
	ActionEndScene    Action = "end_scene"
	ActionEndGame     Action = "end_game"
)

type Perform struct {
	Action Action
	Reply  chan error
}

func (Perform) isSessionMsg() {}

// Subscribe registers Outbox under ID. A previous outbox with the same ID is
// closed. Ack is signalled once the outbox is registered.
type Subscribe struct {
	ID     string
	Outbox chan View // receives every new view; closed when the session ends
	Ack    chan struct{}
}

func (Subscribe) isSessionMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isSessionMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// View is everything the presentation layer renders.
type View struct {
	Version         int
	State           game.State
	Performing      bool
	ConnectionError string
	ConnectionState transport.ConnState
	Identity        string
	Joined          bool
	Dropped         int
}

type Config struct {
	PlayerName string
	Log        *zap.Logger
	Now        func() time.Time
}

type Session struct {
	inbox chan Msg
	log   *zap.Logger
	now   func() time.Time
	dec   codec.Decoder

	state      game.State
	version    int
	performing bool
	connErr    string
	connState  transport.ConnState
	identity   string
	dropped    int

	channel     transport.Channel
	unsubscribe func()
	join        joinHandshake

	subscribers map[string]chan View

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, cfg Config) *Session {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		inbox:       make(chan Msg, 64),
		log:         cfg.Log.With(zap.String("player", cfg.PlayerName)),
		now:         cfg.Now,
		dec:         codec.Decoder{Log: cfg.Log},
		state:       game.NewState(cfg.PlayerName),
		connState:   transport.StateDisconnected,
		subscribers: make(map[string]chan View),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			changed := false
			switch msg := m.(type) {
			case Inbound:
				changed = s.receive(msg.Payload)

			case ConnectionChanged:
				if msg.State != s.connState {
					s.log.Info("connection state changed",
						zap.Stringer("from", s.connState), zap.Stringer("to", msg.State))
					s.connState = msg.State
					changed = true
				}
				changed = s.maybeJoin() || changed

			case IdentityKnown:
				if msg.Identity != s.identity {
					s.identity = msg.Identity
					changed = true
				}
				changed = s.maybeJoin() || changed

			case ChannelAttached:
				s.attach(msg.Channel)
				s.maybeJoin()
				changed = true

			case Perform:
				err := s.perform(msg.Action)
				msg.Reply <- err
				if msg.Action == ActionEndGame {
					s.shutdown()
					return
				}
				changed = true

			case Subscribe:
				if old, ok := s.subscribers[msg.ID]; ok && old != msg.Outbox {
					close(old)
				}
				s.subscribers[msg.ID] = msg.Outbox
				s.deliver(msg.ID, msg.Outbox, s.view())
				if msg.Ack != nil {
					msg.Ack <- struct{}{}
				}

			case Unsubscribe:
				if ch, ok := s.subscribers[msg.ID]; ok {
					close(ch)
					delete(s.subscribers, msg.ID)
				}

			case GetView:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}

			if changed {
				s.version++
				s.broadcast()
			}
		}
	}
}

// receive runs one payload through decode, parse and reduce. It reports
// whether the game state changed.
func (s *Session) receive(payload any) bool {
	text := s.dec.Decode(payload)
	res := protocol.Parse(text)
	if !res.OK() {
		s.dropped++
		s.log.Debug("dropped inbound message",
			zap.String("reason", string(res.Reason)),
			zap.String("type", res.Type),
			zap.Error(res.Err))
		return false
	}

	next, err := game.Apply(s.state, res.Event)
	if err != nil {
		s.log.Debug("host message not applied", zap.String("type", res.Type), zap.Error(err))
		return false
	}
	if game.Equal(next, s.state) {
		return false
	}

	s.log.Debug("game state advanced",
		zap.String("type", res.Type),
		zap.Stringer("phase", next.Phase),
		zap.Int("rounds", len(next.Rounds)))
	s.state = next
	return true
}

func (s *Session) perform(a Action) error {
	switch a {
	case ActionStartImprov:
		if err := s.send(protocol.StartImprov{}); err != nil {
			return err
		}
		s.performing = true
		return nil

	case ActionEndScene:
		if err := s.send(protocol.EndScene{}); err != nil {
			return err
		}
		s.performing = false
		return nil

	case ActionEndGame:
		// Best effort: the session ends whether or not the host hears it.
		err := s.send(protocol.EndGame{})
		s.performing = false
		return err

	default:
		return errors.New("unknown action " + string(a))
	}
}

func (s *Session) attach(ch transport.Channel) {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.channel = ch
	if ch == nil {
		s.log.Info("data channel detached")
		return
	}
	s.unsubscribe = ch.Subscribe(protocol.Topic, func(p transport.Packet) {
		_ = s.post(context.Background(), Inbound{Payload: p})
	})
	s.log.Info("data channel attached", zap.String("topic", protocol.Topic))
}

func (s *Session) view() View {
	return View{
		Version:         s.version,
		State:           s.state.Clone(),
		Performing:      s.performing,
		ConnectionError: s.connErr,
		ConnectionState: s.connState,
		Identity:        s.identity,
		Joined:          s.join.sent,
		Dropped:         s.dropped,
	}
}

func (s *Session) broadcast() {
	v := s.view()
	for id, ch := range s.subscribers {
		s.deliver(id, ch, v)
	}
}

// deliver never blocks the loop: a subscriber that cannot keep up is dropped.
func (s *Session) deliver(id string, ch chan View, v View) {
	select {
	case ch <- v:
	default:
		close(ch)
		delete(s.subscribers, id)
		s.log.Warn("dropping slow subscriber", zap.String("subscriber", id))
	}
}

func (s *Session) shutdown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.version++
	final := s.view()
	for id, ch := range s.subscribers {
		select {
		case ch <- final:
		default:
		}
		close(ch)
		delete(s.subscribers, id)
	}
	s.log.Info("session ended",
		zap.Stringer("phase", s.state.Phase),
		zap.Int("rounds", len(s.state.Rounds)))
	s.cancel()
}

// Inbox exposes the session's mailbox.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) post(ctx context.Context, msg Msg) error {
	select {
	case <-s.done:
		return ErrSessionEnded
	default:
	}
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver feeds one inbound payload to the session.
func (s *Session) Deliver(ctx context.Context, payload any) error {
	return s.post(ctx, Inbound{Payload: payload})
}

func (s *Session) SetConnectionState(ctx context.Context, st transport.ConnState) error {
	return s.post(ctx, ConnectionChanged{State: st})
}

func (s *Session) SetIdentity(ctx context.Context, identity string) error {
	return s.post(ctx, IdentityKnown{Identity: identity})
}

func (s *Session) AttachChannel(ctx context.Context, ch transport.Channel) error {
	return s.post(ctx, ChannelAttached{Channel: ch})
}

func (s *Session) StartImprov(ctx context.Context) error { return s.do(ctx, ActionStartImprov) }

func (s *Session) EndScene(ctx context.Context) error { return s.do(ctx, ActionEndScene) }

// EndGame tells the host we are leaving and ends the session. The session
// ends even when the returned error is non-nil.
func (s *Session) EndGame(ctx context.Context) error { return s.do(ctx, ActionEndGame) }

func (s *Session) do(ctx context.Context, a Action) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, Perform{Action: a, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionEnded
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.post(ctx, GetView{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, ErrSessionEnded
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Watch registers outbox for view updates. The current view is sent right
// away. Once Watch returns nil, outbox is closed when the session ends. If the
// session ends before registering it, Watch closes outbox itself and returns
// ErrSessionEnded.
func (s *Session) Watch(ctx context.Context, id string, outbox chan View) error {
	ack := make(chan struct{}, 1)
	if err := s.post(ctx, Subscribe{ID: id, Outbox: outbox, Ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		select {
		case <-ack:
			return nil
		default:
			// The loop is gone and never saw the message.
			close(outbox)
			return ErrSessionEnded
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Unwatch(ctx context.Context, id string) error {
	return s.post(ctx, Unsubscribe{ID: id})
}

func (s *Session) Close() {
	s.cancel()
	<-s.done
}
