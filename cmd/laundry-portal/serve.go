package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/laundrypro/portal/internal/api"
	"github.com/laundrypro/portal/internal/api/middleware"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/infrastructure/poller"
	"github.com/laundrypro/portal/pkg/logger"
)

func serveCmd(get func() *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if port != "" {
				a.cfg.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port; overrides PORT")
	return cmd
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Component("server")
	latch := &middleware.LoginLatch{}
	dashboard := poller.NewDashboard(a.client, func() bool { return a.auth.State().Authenticated() }, a.cfg.DashboardRefresh, a.log)

	a.auth.Subscribe(latch.OnAuthEvent)
	a.auth.Subscribe(func(ev domain.AuthEvent) {
		switch ev.Kind {
		case domain.EventLogout, domain.EventForcedSignOut:
			dashboard.Reset()
		case domain.EventLogin, domain.EventRegister, domain.EventAdminSetup, domain.EventBootstrapResolved:
			go func() {
				if err := dashboard.Refresh(ctx); err != nil {
					log.Debug().Err(err).Msg("dashboard refresh after sign-in failed")
				}
			}()
		}
	})

	if a.files != nil {
		if err := a.files.Watch(ctx, func() { a.auth.SessionChanged(ctx) }); err != nil {
			log.Warn().Err(err).Msg("session slot watch disabled")
		}
	}

	// Start-up never waits on the backend; guarded pages answer pending
	// until the session is resolved.
	go a.auth.Bootstrap(ctx)
	dashboard.Start(ctx)
	defer dashboard.Stop()

	router := api.NewRouter(api.Deps{
		Session:   a.auth,
		Dashboard: dashboard,
		Latch:     latch,
		Checks:    a.checks,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      a.cfg.API.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", a.cfg.Port).Str("env", a.cfg.Env).Str("api", a.cfg.API.BaseURL).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			log.Error().Err(err).Msg("server failed")
			return err
		}
	case <-ctx.Done():
	}
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
