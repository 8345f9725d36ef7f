package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/protocol"
	"github.com/DoyleJ11/improv-battle/internal/transport"
)

var ErrNotReady = errors.New("data channel not ready")

const StatusWaitingForChannel = "Connected, waiting for the data channel"

// joinHandshake latches once player_join has gone out.
type joinHandshake struct {
	sent     bool
	attempts int
}

// maybeJoin sends player_join the first time the room is connected and our
// identity is known. Until it succeeds it is re-evaluated on every
// connection, identity or channel change. It reports whether the view changed.
func (s *Session) maybeJoin() bool {
	if s.join.sent {
		return false
	}
	if s.connState != transport.StateConnected || s.identity == "" {
		return false
	}

	s.join.attempts++
	if s.channel == nil {
		s.log.Info("cannot join yet", zap.Error(ErrNotReady), zap.Int("attempt", s.join.attempts))
		s.connErr = StatusWaitingForChannel
		return true
	}

	if err := s.send(protocol.PlayerJoin{PlayerName: s.state.PlayerName}); err != nil {
		s.log.Warn("player_join not sent, will retry", zap.Error(err), zap.Int("attempt", s.join.attempts))
		return true
	}

	s.join.sent = true
	s.log.Info("joined game", zap.String("identity", s.identity), zap.Int("attempt", s.join.attempts))
	return true
}
