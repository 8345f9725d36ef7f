package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/improv-battle/internal/game"
	"github.com/DoyleJ11/improv-battle/internal/session"
	"github.com/DoyleJ11/improv-battle/internal/transport"
)

func baseView() session.View {
	return session.View{
		State:           game.NewState("Ada"),
		ConnectionState: transport.StateConnected,
	}
}

func TestRender(t *testing.T) {
	awaiting := baseView()
	awaiting.State.Phase = game.PhaseAwaitingImprov
	awaiting.State.CurrentRound = 1
	awaiting.State.CurrentScenario = "Two chefs, one spoon"

	performing := awaiting
	performing.Performing = true

	reacted := awaiting
	reacted.State.Phase = game.PhaseReacting
	reacted.State.Rounds = []game.Round{{Scenario: "Two chefs, one spoon", HostReaction: "Delicious chaos."}}

	done := reacted
	done.State.Phase = game.PhaseDone

	joined := baseView()
	joined.Joined = true

	failing := baseView()
	failing.ConnectionError = session.StatusNotConnected

	disconnected := baseView()
	disconnected.ConnectionState = transport.StateDisconnected

	cases := []struct {
		name       string
		prev, next session.View
		want       string
	}{
		{name: "nothing changed", prev: awaiting, next: awaiting, want: ""},
		{name: "connection state", prev: disconnected, next: baseView(), want: "[relay] connected\n"},
		{name: "connection error", prev: baseView(), next: failing, want: "[relay] Not connected to the game room\n"},
		{name: "error cleared is silent", prev: failing, next: baseView(), want: ""},
		{name: "joined", prev: baseView(), next: joined, want: "[game] joined as Ada\n"},
		{name: "scenario", prev: baseView(), next: awaiting,
			want: "[host] round 1/3: Two chefs, one spoon\n       type 'start' to begin\n"},
		{name: "performing", prev: awaiting, next: performing,
			want: "[you] performing... type 'end' when the scene is over\n"},
		{name: "scene ended", prev: performing, next: awaiting, want: "[you] scene ended\n"},
		{name: "reaction", prev: awaiting, next: reacted, want: "[host] Delicious chaos.\n"},
		{name: "game over", prev: reacted, next: done,
			want: "[game] over after 1 round(s)\n  1. Two chefs, one spoon -> Delicious chaos.\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			render(&buf, tc.prev, tc.next)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func runDrive(t *testing.T, s *session.Session, relayGone <-chan struct{}, commands chan string) (*bytes.Buffer, <-chan error) {
	t.Helper()
	var out bytes.Buffer
	result := make(chan error, 1)
	go func() {
		result <- drive(context.Background(), s, relayGone, commands, &out, zaptest.NewLogger(t))
	}()
	return &out, result
}

func waitDrive(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("drive did not return")
		return nil
	}
}

func TestDrive_CommandsWithoutRelay(t *testing.T) {
	s := session.New(context.Background(), session.Config{PlayerName: "Ada", Log: zaptest.NewLogger(t)})
	t.Cleanup(s.Close)

	commands := make(chan string)
	out, result := runDrive(t, s, nil, commands)

	commands <- "start" // not connected: reported in the view, not fatal
	commands <- "dance"
	commands <- ""
	close(commands)

	require.NoError(t, waitDrive(t, result))
	assert.Equal(t, "commands: start | end | quit\n", out.String())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session still running after input ended")
	}
}

func TestDrive_RelayLossDetachesThenQuit(t *testing.T) {
	s := session.New(context.Background(), session.Config{PlayerName: "Ada", Log: zaptest.NewLogger(t)})
	t.Cleanup(s.Close)

	gone := make(chan struct{})
	close(gone)
	commands := make(chan string)
	_, result := runDrive(t, s, gone, commands)

	commands <- "end"
	require.Eventually(t, func() bool {
		v, err := s.View(context.Background())
		return err == nil && v.ConnectionError == session.StatusNotConnected
	}, time.Second, 10*time.Millisecond)

	commands <- "quit"
	require.NoError(t, waitDrive(t, result))
	<-s.Done()
}
