// Package protocol is the improv-battle message schema.
//
// Host -> client, one JSON object per data-channel message:
//
//	game_state_update: {"type":"game_state_update","state":{...full game state...}}
//	scenario_start:    {"type":"scenario_start","scenario":"..."}
//	host_reaction:     {"type":"host_reaction","reaction":"...","scenario":"..."}   scenario optional
//	game_completed:    {"type":"game_completed"}
//
// Client -> host, all stamped with Unix milliseconds:
//
//	player_join:  {"type":"player_join","player_name":"...","timestamp":1700000000000}
//	start_improv: {"type":"start_improv","timestamp":...}
//	end_scene:    {"type":"end_scene","timestamp":...}
//	end_game:     {"type":"end_game","timestamp":...}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/improv-battle/internal/game"
)

// Topic is the data-channel topic both sides publish on.
const Topic = "improv-battle"

const (
	TypeGameStateUpdate = "game_state_update"
	TypeScenarioStart   = "scenario_start"
	TypeHostReaction    = "host_reaction"
	TypeGameCompleted   = "game_completed"

	TypePlayerJoin  = "player_join"
	TypeStartImprov = "start_improv"
	TypeEndScene    = "end_scene"
	TypeEndGame     = "end_game"
)

var ErrEmptyPlayerName = errors.New("player name is required")

// HostMessage is the union of every host -> client message.
type HostMessage struct {
	Type     string      `json:"type"`
	State    *game.State `json:"state,omitempty"`
	Scenario *string     `json:"scenario,omitempty"`
	Reaction *string     `json:"reaction,omitempty"`
}

// ClientMessage is the union of every client -> host message.
type ClientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type Outbound interface{ isOutbound() }

type PlayerJoin struct{ PlayerName string }

type StartImprov struct{}

type EndScene struct{}

type EndGame struct{}

func (PlayerJoin) isOutbound()  {}
func (StartImprov) isOutbound() {}
func (EndScene) isOutbound()    {}
func (EndGame) isOutbound()     {}

// TypeOf returns the wire type of msg.
func TypeOf(msg Outbound) string {
	switch msg.(type) {
	case PlayerJoin:
		return TypePlayerJoin
	case StartImprov:
		return TypeStartImprov
	case EndScene:
		return TypeEndScene
	case EndGame:
		return TypeEndGame
	default:
		return ""
	}
}

// Encode serializes msg stamped with now.
func Encode(msg Outbound, now time.Time) ([]byte, error) {
	cm, err := toClientMessage(msg)
	if err != nil {
		return nil, err
	}
	cm.Timestamp = now.UnixMilli()
	return json.Marshal(cm)
}

func toClientMessage(msg Outbound) (ClientMessage, error) {
	switch m := msg.(type) {
	case PlayerJoin:
		if m.PlayerName == "" {
			return ClientMessage{}, ErrEmptyPlayerName
		}
		return ClientMessage{Type: TypePlayerJoin, PlayerName: m.PlayerName}, nil
	case StartImprov, EndScene, EndGame:
		return ClientMessage{Type: TypeOf(m)}, nil
	default:
		return ClientMessage{}, fmt.Errorf("unsupported outbound message %T", msg)
	}
}
