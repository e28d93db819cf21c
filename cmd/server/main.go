// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/gomoku/internal/auth"
	"github.com/jason-s-yu/gomoku/internal/cache"
	"github.com/jason-s-yu/gomoku/internal/config"
	"github.com/jason-s-yu/gomoku/internal/database"
	"github.com/jason-s-yu/gomoku/internal/roomsync"
	"github.com/jason-s-yu/gomoku/internal/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const roomTTL = 48 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	cfg.ConfigureLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	if cfg.AuthSecret == "" {
		logrus.Warn("AUTH_SECRET not set, tokens will not survive a restart")
	}

	handler := server.NewHandler(roomsync.NewService(store), issuer, cfg.OriginAllowlist)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("server listening on :%s (store=%s)", cfg.Port, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects the configured room store.
func openStore(ctx context.Context, cfg config.Config) (roomsync.Store, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store roomsync.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = roomsync.NewMemoryStore()
	case config.DriverRedis:
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { rdb.Close() })
		logrus.Info("connected to redis")
		store = roomsync.NewRedisStore(rdb, roomTTL)
	case config.DriverPostgres:
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		if err := database.Migrate(ctx, pool); err != nil {
			cleanup()
			return nil, nil, err
		}
		store = roomsync.NewPostgresStore(pool)
	case config.DriverSQLite:
		s, err := roomsync.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		store = s
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	closers = append(closers, func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("close store")
		}
	})
	return store, cleanup, nil
}
