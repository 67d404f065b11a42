package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "habits/internal/adapter/http"
	"habits/internal/adapter/memory"
	"habits/internal/adapter/postgres"
	"habits/internal/app"
	"habits/internal/config"
	"habits/internal/domain"
	"habits/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const maintenanceInterval = 10 * time.Minute

type stores struct {
	habits   domain.HabitRepository
	checks   domain.CheckRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("env file", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	clock := app.Clock{Now: time.Now, Location: cfg.Location}
	tracker := app.NewTracker(st.habits, st.checks, clock, logger.With("component", "tracker"))
	analytics := app.NewAnalyticsService(st.habits, st.checks, clock)
	authSvc := app.NewAuthService(st.users, st.sessions)

	if cfg.AdminUsername != "" {
		err := authSvc.CreateInitialUser(ctx, cfg.AdminUsername, cfg.AdminPassword)
		switch {
		case errors.Is(err, app.ErrUsersExist):
		case err != nil:
			return err
		default:
			logger.Info("created initial user", "username", cfg.AdminUsername)
		}
	}

	if cfg.DemoData {
		hs, err := tracker.LoadDemoData(ctx, 0, app.NewRand(cfg.DemoSeed))
		if err != nil {
			return err
		}
		logger.Info("demo data loaded", "habits", len(hs))
	}

	oidcCfg, err := setupOIDC(ctx, cfg.OIDC)
	if err != nil {
		return err
	}

	srv := adapthttp.New(tracker, analytics, authSvc, oidcCfg, logger)
	defer srv.Close()
	if cfg.AuthDisabled {
		srv = srv.WithoutAuth()
		logger.Warn("authentication disabled")
	}

	go maintain(ctx, authSvc, srv, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStores(cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		db := memory.New()
		return stores{
			habits:   db,
			checks:   db,
			users:    db,
			sessions: db.NewSessionRepo(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		habits:   db,
		checks:   db,
		users:    db,
		sessions: postgres.NewSessionRepo(db),
		close:    db.Close,
	}, nil
}

func setupOIDC(ctx context.Context, c config.OIDC) (adapthttp.OIDCConfig, error) {
	if !c.Enabled() {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, c.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, err
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// maintain purges expired sessions and stale rate-limit windows until ctx
// is cancelled.
func maintain(ctx context.Context, authSvc *app.AuthService, srv *adapthttp.Server, logger *slog.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authSvc.PurgeExpiredSessions(ctx); err != nil {
				logger.Warn("purge sessions", "err", err)
			}
			srv.PurgeRateLimits()
		}
	}
}
