package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chesstour/live-backend/internal/config"
	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/httpapi"
	"github.com/chesstour/live-backend/internal/registry"
	"github.com/chesstour/live-backend/internal/store"
	"github.com/chesstour/live-backend/internal/token"
	"github.com/chesstour/live-backend/internal/ws"
)

const classifyTimeout = 5 * time.Second

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("configuration", zap.Error(err))
	}

	codec, err := token.NewCodec(cfg.Secret)
	if err != nil {
		log.Fatal("session codec", zap.Error(err))
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("store", zap.Error(err))
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL unset, using in-memory store")
		st = store.NewMemory()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.NewRegistry(ctx, log)
	classifier := conn.NewClassifier(codec, st, classifyTimeout)
	gw := ws.NewGateway(reg, classifier, st, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.SetupRoutes(gw, reg, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		reg.Inbox() <- registry.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
