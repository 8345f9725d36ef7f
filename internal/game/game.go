package game

import (
	"errors"
	"fmt"
	"slices"
)

var ErrGameAlreadyCompleted = errors.New("game already completed")
var ErrRoundLimit = errors.New("round limit reached")
var ErrUnsupportedEvent = errors.New("unsupported event")

type Phase string

const (
	PhaseIntro          Phase = "intro"
	PhaseAwaitingImprov Phase = "awaiting_improv"
	PhaseReacting       Phase = "reacting"
	PhaseDone           Phase = "done"
)

type Round struct {
	Scenario     string `json:"scenario"`
	HostReaction string `json:"host_reaction"`
}

// State is the client's view of the game. The host owns CurrentRound and
// MaxRounds; everything else moves through Apply.
type State struct {
	PlayerName      string  `json:"player_name"`
	CurrentRound    int     `json:"current_round"`
	MaxRounds       int     `json:"max_rounds"`
	Rounds          []Round `json:"rounds"`
	Phase           Phase   `json:"phase"`
	CurrentScenario string  `json:"current_scenario,omitempty"`
}

type Event interface{ isGameEvent() }

// StateReplaced is the host's authoritative snapshot.
type StateReplaced struct {
	State State
}

func (StateReplaced) isGameEvent() {}

type ScenarioStarted struct {
	Scenario string
}

func (ScenarioStarted) isGameEvent() {}

// HostReacted closes a round. Scenario is optional on the wire.
type HostReacted struct {
	Reaction string
	Scenario string
}

func (HostReacted) isGameEvent() {}

type GameCompleted struct{}

func (GameCompleted) isGameEvent() {}

// Apply returns the state that follows s after ev. s is never modified; on
// error the returned state is s unchanged.
func Apply(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case StateReplaced:
		return e.State.Clone(), nil

	case ScenarioStarted:
		if s.Phase == PhaseDone {
			return s, ErrGameAlreadyCompleted
		}
		next := s.Clone()
		next.Phase = PhaseAwaitingImprov
		next.CurrentScenario = e.Scenario
		return next, nil

	case HostReacted:
		if s.Phase == PhaseDone {
			return s, ErrGameAlreadyCompleted
		}
		if len(s.Rounds) >= s.MaxRounds {
			return s, fmt.Errorf("%w: %d of %d rounds recorded", ErrRoundLimit, len(s.Rounds), s.MaxRounds)
		}

		next := s.Clone()
		next.Rounds = append(next.Rounds, Round{
			Scenario:     reactionScenario(s, e),
			HostReaction: e.Reaction,
		})
		next.Phase = PhaseReacting
		// CurrentScenario stays: it is what the presentation shows next to
		// the reaction until the host starts another scenario.
		return next, nil

	case GameCompleted:
		next := s.Clone()
		next.Phase = PhaseDone
		return next, nil

	default:
		return s, ErrUnsupportedEvent
	}
}

func reactionScenario(s State, e HostReacted) string {
	if e.Scenario != "" {
		return e.Scenario
	}
	if s.CurrentScenario != "" {
		return s.CurrentScenario
	}
	return fmt.Sprintf("Round %d", s.CurrentRound)
}

// Clone returns a copy of s that shares no memory with it.
func (s State) Clone() State {
	c := s
	c.Rounds = slices.Clone(s.Rounds)
	if c.Rounds == nil {
		c.Rounds = []Round{}
	}
	return c
}
