package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/improv-battle/internal/config"
	"github.com/DoyleJ11/improv-battle/internal/logging"
	"github.com/DoyleJ11/improv-battle/internal/session"
	"github.com/DoyleJ11/improv-battle/internal/store"
	"github.com/DoyleJ11/improv-battle/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flag.StringVar(&cfg.PlayerName, "name", cfg.PlayerName, "player name")
	flag.StringVar(&cfg.Room, "room", cfg.Room, "room code")
	flag.StringVar(&cfg.RelayURL, "relay", cfg.RelayURL, "relay base url")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("client stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, in io.Reader, out io.Writer) (err error) {
	var st *store.Store
	if cfg.DatabaseURL != "" {
		if st, err = store.Open(cfg.DatabaseURL); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, st.Close()) }()
		if err = st.Migrate(ctx); err != nil {
			return err
		}
	}

	s := session.New(context.Background(), session.Config{PlayerName: cfg.PlayerName, Log: logger})
	defer s.Close()

	url, err := transport.RoomURL(cfg.RelayURL, cfg.Room)
	if err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ch, err := transport.Dial(dialCtx, url, transport.Options{
		QueueSize:  cfg.SendQueue,
		Log:        logger,
		OnState:    func(cs transport.ConnState) { _ = s.SetConnectionState(context.Background(), cs) },
		OnIdentity: func(id string) { _ = s.SetIdentity(context.Background(), id) },
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, ch.Close()) }()

	if err := s.AttachChannel(ctx, ch); err != nil {
		return err
	}

	views := make(chan session.View, 32)
	if err := s.Watch(ctx, "terminal", views); err != nil {
		return err
	}

	commands := make(chan string)
	go readCommands(in, commands)

	var last session.View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var prev session.View
		for v := range views {
			render(out, prev, v)
			prev, last = v, v
		}
		return nil
	})
	g.Go(func() error {
		defer s.Close()
		return drive(gctx, s, ch.Done(), commands, out, logger)
	})
	err = g.Wait()

	if st != nil && last.Version > 0 {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		id, serr := st.SaveTranscript(saveCtx, last.State)
		if serr != nil {
			return multierr.Append(err, serr)
		}
		logger.Info("transcript saved", zap.Stringer("id", id))
	}
	return err
}

// drive turns terminal commands into session actions until the session ends.
// relayGone is closed when the relay connection drops; the session then
// loses its channel but keeps running until the player quits.
func drive(ctx context.Context, s *session.Session, relayGone <-chan struct{}, commands <-chan string, out io.Writer, logger *zap.Logger) error {
	for {
		select {
		case <-s.Done():
			return nil

		case <-ctx.Done():
			endGame(s, logger)
			return nil

		case <-relayGone:
			relayGone = nil
			logger.Warn("relay connection lost")
			_ = s.AttachChannel(context.Background(), nil)

		case cmd, ok := <-commands:
			if !ok {
				endGame(s, logger)
				return nil
			}
			actx, cancel := context.WithTimeout(ctx, 2*time.Second)
			var err error
			switch cmd {
			case "start", "s":
				err = s.StartImprov(actx)
			case "end", "e":
				err = s.EndScene(actx)
			case "quit", "q":
				cancel()
				endGame(s, logger)
				return nil
			case "":
			default:
				fmt.Fprintf(out, "commands: start | end | quit\n")
			}
			cancel()
			if err != nil && !errors.Is(err, session.ErrNotConnected) {
				return err
			}
		}
	}
}

func endGame(s *session.Session, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.EndGame(ctx); err != nil && !errors.Is(err, session.ErrSessionEnded) {
		logger.Info("end_game not delivered", zap.Error(err))
	}
}

func readCommands(in io.Reader, commands chan<- string) {
	defer close(commands)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		commands <- strings.ToLower(strings.TrimSpace(sc.Text()))
	}
}
