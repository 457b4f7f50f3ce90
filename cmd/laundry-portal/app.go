package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/api/handler"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
	"github.com/laundrypro/portal/internal/core/service"
	apiclient "github.com/laundrypro/portal/internal/infrastructure/api"
	mongodb "github.com/laundrypro/portal/internal/infrastructure/db/mongo"
	redisdb "github.com/laundrypro/portal/internal/infrastructure/db/redis"
	"github.com/laundrypro/portal/internal/infrastructure/queue"
	"github.com/laundrypro/portal/internal/infrastructure/session"
	"github.com/laundrypro/portal/internal/pkg/config"
	"github.com/laundrypro/portal/pkg/logger"
)

// app is the wired process: one auth context over one session slot.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	client *apiclient.Client
	auth   *service.AuthContext

	// files is set for the file backend so the server can watch the slot.
	files *session.FileStore
	audit *mongodb.AuditRepository

	checks  map[string]handler.Check
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: "laundry-portal",
	})

	a := &app{cfg: cfg, log: log, checks: map[string]handler.Check{}}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	recorders := service.Recorders{service.NewLogRecorder(log)}
	if cfg.Mongo.URI != "" {
		// The audit trail is optional; the portal runs without it.
		if repo, err := a.openAudit(ctx); err != nil {
			log.Warn().Err(err).Msg("auth audit disabled")
		} else {
			disp := queue.NewDispatcher(0, repo, log)
			disp.Start()
			a.closers = append(a.closers, disp.Close)
			recorders = append(recorders, disp)
		}
	}

	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Log:     log,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	auth := service.NewAuthContext(client, store, recorders, log, service.AuthContextOptions{
		BootstrapTimeout: cfg.API.BootstrapTimeout,
	})
	client.SetTokenSource(auth.Token)
	client.OnUnauthorized(auth.HandleUnauthorized)
	auth.Subscribe(func(ev domain.AuthEvent) {
		switch ev.Kind {
		case domain.EventLogin, domain.EventRegister, domain.EventAdminSetup, domain.EventBootstrapResolved:
			client.ClearUnauthorized()
		}
	})

	a.client, a.auth = client, auth
	return a, nil
}

func (a *app) openStore(ctx context.Context) (ports.SessionStore, error) {
	switch a.cfg.Session.Backend {
	case config.BackendRedis:
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return redisdb.NewSessionStore(rdb, "", a.cfg.Session.TTL, a.log), nil

	case config.BackendMemory:
		return session.NewMemoryStore(), nil

	default:
		fs, err := session.NewFileStore(a.cfg.Session.Dir, a.cfg.Session.Secret, a.log)
		if err != nil {
			return nil, err
		}
		a.files = fs
		a.checks["session"] = func(ctx context.Context) error {
			_, err := fs.Load(ctx)
			return err
		}
		return fs, nil
	}
}

func (a *app) openAudit(ctx context.Context) (*mongodb.AuditRepository, error) {
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      a.cfg.Mongo.URI,
		Database: a.cfg.Mongo.Database,
		AppName:  "laundry-portal",
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Disconnect)

	repo := mongodb.NewAuditRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		a.log.Warn().Err(err).Msg("audit index creation failed")
	}
	a.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	a.audit = repo
	return repo, nil
}

// Close waits for background session work and releases connections.
func (a *app) Close(ctx context.Context) error {
	if a.auth != nil {
		a.auth.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
