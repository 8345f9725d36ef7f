package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/improv-battle/internal/protocol"
	"github.com/DoyleJ11/improv-battle/internal/transport"
)

var ErrNotConnected = errors.New("not connected to the game room")

const StatusNotConnected = "Not connected to the game room"

// send is the only way out of the session. Whatever goes wrong, the caller
// and the player see ErrNotConnected; the cause is only logged.
func (s *Session) send(msg protocol.Outbound) error {
	typ := protocol.TypeOf(msg)

	if s.channel == nil {
		return s.sendFailed(typ, ErrNotReady)
	}

	data, err := protocol.Encode(msg, s.now())
	if err != nil {
		return s.sendFailed(typ, err)
	}

	err = s.channel.Publish(s.ctx, data, transport.PublishOptions{
		Topic:    protocol.Topic,
		Reliable: true,
	})
	if err != nil {
		return s.sendFailed(typ, err)
	}

	s.connErr = ""
	s.log.Debug("sent", zap.String("type", typ))
	return nil
}

func (s *Session) sendFailed(typ string, cause error) error {
	s.log.Warn("send failed", zap.String("type", typ), zap.Error(cause))
	s.connErr = StatusNotConnected
	return ErrNotConnected
}
