package main

import (
	"fmt"
	"io"

	"github.com/DoyleJ11/improv-battle/internal/game"
	"github.com/DoyleJ11/improv-battle/internal/session"
)

// render prints what changed between two views, one line per change.
func render(w io.Writer, prev, v session.View) {
	if v.ConnectionState != prev.ConnectionState {
		fmt.Fprintf(w, "[relay] %s\n", v.ConnectionState)
	}
	if v.ConnectionError != prev.ConnectionError && v.ConnectionError != "" {
		fmt.Fprintf(w, "[relay] %s\n", v.ConnectionError)
	}
	if v.Joined && !prev.Joined {
		fmt.Fprintf(w, "[game] joined as %s\n", v.State.PlayerName)
	}
	if v.Performing != prev.Performing {
		if v.Performing {
			fmt.Fprintln(w, "[you] performing... type 'end' when the scene is over")
		} else {
			fmt.Fprintln(w, "[you] scene ended")
		}
	}

	st, old := v.State, prev.State
	if st.CurrentScenario != old.CurrentScenario && st.CurrentScenario != "" && st.Phase == game.PhaseAwaitingImprov {
		fmt.Fprintf(w, "[host] round %d/%d: %s\n", st.CurrentRound, st.MaxRounds, st.CurrentScenario)
		fmt.Fprintln(w, "       type 'start' to begin")
	}
	if len(st.Rounds) > len(old.Rounds) {
		for _, r := range st.Rounds[len(old.Rounds):] {
			fmt.Fprintf(w, "[host] %s\n", r.HostReaction)
		}
	}
	if st.Phase != old.Phase && st.Phase == game.PhaseDone {
		fmt.Fprintf(w, "[game] over after %d round(s)\n", len(st.Rounds))
		for i, r := range st.Rounds {
			fmt.Fprintf(w, "  %d. %s -> %s\n", i+1, r.Scenario, r.HostReaction)
		}
	}
}
