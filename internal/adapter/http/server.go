package adapthttp

import (
	"log/slog"
	"net/http"
	"time"

	"habits/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Login attempts allowed per client IP per minute.
const loginAttemptsPerMinute = 10

// OIDCConfig holds the SSO provider settings. SSO endpoints answer 404
// unless Enabled is set.
type OIDCConfig struct {
	Enabled      bool
	OAuth2Config *oauth2.Config
	Provider     *oidc.Provider
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	tracker    *app.Tracker
	analytics  *app.AnalyticsService
	authSvc    *app.AuthService
	oidcConfig OIDCConfig
	hub        *Hub
	limiter    *rateLimiter
	metrics    *metrics
	logger     *slog.Logger

	disableAuth bool
	unsubscribe []func()
}

// New creates a Server wired to the given application services. The
// server's event hub and metrics subscribe to the tracker until Close is
// called.
func New(tracker *app.Tracker, analytics *app.AnalyticsService, authSvc *app.AuthService, oidcConfig OIDCConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := NewHub(logger.With("component", "events"))
	s := &Server{
		tracker:    tracker,
		analytics:  analytics,
		authSvc:    authSvc,
		oidcConfig: oidcConfig,
		hub:        hub,
		limiter:    newRateLimiter(),
		metrics:    newMetrics(hub),
		logger:     logger,
	}
	s.unsubscribe = []func(){
		tracker.Subscribe(s.hub.Publish),
		tracker.Subscribe(s.metrics.observeEvent),
	}
	return s
}

// WithoutAuth disables authentication; every request acts as user 0.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Close detaches the event hub and metrics from the tracker.
func (s *Server) Close() {
	for _, cancel := range s.unsubscribe {
		cancel()
	}
}

// PurgeRateLimits drops expired login rate-limit windows.
func (s *Server) PurgeRateLimits() {
	s.limiter.cleanup()
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("GET /badges", s.handleBadges)

	protected.HandleFunc("GET /habits", s.handleListHabits)
	protected.HandleFunc("POST /habits", s.handleCreateHabit)
	protected.HandleFunc("GET /habits/{id}", s.handleGetHabit)
	protected.HandleFunc("PATCH /habits/{id}", s.handleUpdateHabit)
	protected.HandleFunc("DELETE /habits/{id}", s.handleDeleteHabit)

	protected.HandleFunc("GET /habits/{id}/checks", s.handleListChecks)
	protected.HandleFunc("POST /habits/{id}/checks/{day}/toggle", s.handleToggleCheck)
	protected.HandleFunc("GET /habits/{id}/streaks", s.handleStreaks)
	protected.HandleFunc("GET /habits/{id}/completion", s.handleCompletion)

	protected.HandleFunc("GET /analytics", s.handleAnalytics)
	protected.HandleFunc("GET /analytics/weekdays", s.handleWeekdays)

	protected.HandleFunc("POST /demo", s.handleDemo)
	protected.HandleFunc("GET /events", s.handleEvents)

	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("GET /config", s.handleConfig)
	api.HandleFunc("POST /auth/login", s.rateLimited(s.handleLogin))
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("POST /auth/setup", s.rateLimited(s.handleSetupUser))
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)
	api.Handle("/", s.authMiddleware(protected))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", s.metrics.handler())

	var h http.Handler = withNoCache(root)
	h = s.metrics.middleware(routeOf("/api", api, protected))(h)
	return requestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(realIP(r), loginAttemptsPerMinute, time.Minute) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many attempts, try again later"})
			return
		}
		h(w, r)
	}
}
