package game

import (
	"errors"
	"fmt"
	"slices"
)

const DefaultMaxRounds = 3

var ErrInvalidState = errors.New("invalid game state")

// phases lists every phase in game order.
var phases = []Phase{
	PhaseIntro,
	PhaseAwaitingImprov,
	PhaseReacting,
	PhaseDone,
}

func NewState(playerName string) State {
	return State{
		PlayerName:   playerName,
		CurrentRound: 0,
		MaxRounds:    DefaultMaxRounds,
		Rounds:       []Round{},
		Phase:        PhaseIntro,
	}
}

func (p Phase) Valid() bool {
	return slices.Contains(phases, p)
}

func (p Phase) String() string { return string(p) }

// Validate reports whether s can stand as a full snapshot.
func Validate(s State) error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}
	if s.CurrentRound < 0 {
		return fmt.Errorf("%w: negative current round %d", ErrInvalidState, s.CurrentRound)
	}
	if s.MaxRounds <= 0 {
		return fmt.Errorf("%w: max rounds must be positive, got %d", ErrInvalidState, s.MaxRounds)
	}
	if len(s.Rounds) > s.MaxRounds {
		return fmt.Errorf("%w: %d rounds exceed max %d", ErrInvalidState, len(s.Rounds), s.MaxRounds)
	}
	return nil
}

func (s State) Done() bool { return s.Phase == PhaseDone }

// Equal reports whether a and b hold the same game.
func Equal(a, b State) bool {
	return a.PlayerName == b.PlayerName &&
		a.CurrentRound == b.CurrentRound &&
		a.MaxRounds == b.MaxRounds &&
		a.Phase == b.Phase &&
		a.CurrentScenario == b.CurrentScenario &&
		slices.Equal(a.Rounds, b.Rounds)
}
