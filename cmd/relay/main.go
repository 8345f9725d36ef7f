package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/improv-battle/internal/config"
	"github.com/DoyleJ11/improv-battle/internal/httpapi"
	"github.com/DoyleJ11/improv-battle/internal/hub"
	"github.com/DoyleJ11/improv-battle/internal/logging"
	"github.com/DoyleJ11/improv-battle/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	origins := flag.String("origins", "", "comma separated websocket origin patterns, e.g. localhost:*")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, logger)

	var wsOpts ws.Options
	if *origins != "" {
		wsOpts.OriginPatterns = strings.Split(*origins, ",")
	}

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.SetupRoutes(h, logger, wsOpts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("relay stopped", zap.Error(err))
	}
	logger.Info("relay stopped")
}
