package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/improv-battle/internal/game"
)

func finishedGame() game.State {
	return game.State{
		PlayerName:   "Ada",
		CurrentRound: 2,
		MaxRounds:    3,
		Phase:        game.PhaseDone,
		Rounds: []game.Round{
			{Scenario: "Lost luggage", HostReaction: "Ha!"},
			{Scenario: "Haunted elevator", HostReaction: "Spooky."},
		},
	}
}

func TestFromState_ToState(t *testing.T) {
	s := finishedGame()
	tr := FromState(s)

	assert.NotEqual(t, uuid.Nil, tr.ID)
	require.Len(t, tr.Rounds, 2)
	for i, r := range tr.Rounds {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, tr.ID, r.TranscriptID)
	}
	assert.Equal(t, s, tr.ToState())
}

func TestFromState_FreshIDs(t *testing.T) {
	a := FromState(finishedGame())
	b := FromState(finishedGame())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrNoDSN)
}

// Runs against a real postgres when IMPROV_TEST_DATABASE_URL is set.
func TestStore_SaveAndList(t *testing.T) {
	dsn := os.Getenv("IMPROV_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("IMPROV_TEST_DATABASE_URL not set")
	}

	st, err := Open(dsn)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	s := finishedGame()
	s.PlayerName = "store-test-" + FromState(s).ID.String()
	id, err := st.SaveTranscript(ctx, s)
	require.NoError(t, err)

	got, err := st.Transcripts(ctx, s.PlayerName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, s, got[0].ToState())
}
