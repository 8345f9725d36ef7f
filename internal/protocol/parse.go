package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DoyleJ11/improv-battle/internal/game"
)

type DropReason string

const (
	DropEmpty        DropReason = "empty"
	DropMalformed    DropReason = "malformed"
	DropUnknownType  DropReason = "unknown_type"
	DropMissingField DropReason = "missing_field"
	DropInvalidState DropReason = "invalid_state"
)

// Result is either an event for the game reducer or the reason the message
// was dropped.
type Result struct {
	Event  game.Event
	Type   string
	Reason DropReason
	Err    error
}

func (r Result) OK() bool { return r.Event != nil }

func ok(typ string, ev game.Event) Result {
	return Result{Event: ev, Type: typ}
}

func dropped(typ string, reason DropReason, err error) Result {
	return Result{Type: typ, Reason: reason, Err: err}
}

// Parse decodes one host message. It never fails loudly: anything that is not
// a complete, known message comes back as a dropped Result.
func Parse(text string) Result {
	if strings.TrimSpace(text) == "" {
		return dropped("", DropEmpty, nil)
	}

	var hm HostMessage
	if err := json.Unmarshal([]byte(text), &hm); err != nil {
		return dropped("", DropMalformed, err)
	}

	switch hm.Type {
	case TypeGameStateUpdate:
		if hm.State == nil {
			return dropped(hm.Type, DropMissingField, fmt.Errorf("%s without state", hm.Type))
		}
		s := hm.State.Clone()
		if err := game.Validate(s); err != nil {
			return dropped(hm.Type, DropInvalidState, err)
		}
		return ok(hm.Type, game.StateReplaced{State: s})

	case TypeScenarioStart:
		if hm.Scenario == nil {
			return dropped(hm.Type, DropMissingField, fmt.Errorf("%s without scenario", hm.Type))
		}
		return ok(hm.Type, game.ScenarioStarted{Scenario: *hm.Scenario})

	case TypeHostReaction:
		if hm.Reaction == nil {
			return dropped(hm.Type, DropMissingField, fmt.Errorf("%s without reaction", hm.Type))
		}
		ev := game.HostReacted{Reaction: *hm.Reaction}
		if hm.Scenario != nil {
			ev.Scenario = *hm.Scenario
		}
		return ok(hm.Type, ev)

	case TypeGameCompleted:
		return ok(hm.Type, game.GameCompleted{})

	case "":
		return dropped("", DropMalformed, fmt.Errorf("message has no type"))

	default:
		return dropped(hm.Type, DropUnknownType, nil)
	}
}
