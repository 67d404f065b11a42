package adapthttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"habits/internal/app"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the collectors for one Server. Each server owns its
// registry so that several servers can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	active        prometheus.Gauge
	events        *prometheus.CounterVec
	badges        *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec
	eventClients  prometheus.GaugeFunc
}

func newMetrics(hub *Hub) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Current number of active HTTP requests",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habits_events_total",
			Help: "Committed tracker mutations by event type",
		}, []string{"type"}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "habits_badges_unlocked_total",
			Help: "Badges unlocked by milestone",
		}, []string{"milestone"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
	}
	m.eventClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "habits_event_clients",
		Help: "Connected event stream clients",
	}, func() float64 { return float64(hub.ClientCount()) })

	m.registry.MustRegister(
		m.requests, m.duration, m.active,
		m.events, m.badges, m.loginAttempts, m.eventClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// observeEvent counts a tracker event. It is subscribed to the tracker.
func (m *metrics) observeEvent(ev app.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
	for _, b := range ev.Badges {
		m.badges.WithLabelValues(strconv.Itoa(b.Milestone)).Inc()
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records request count and latency. route maps a request to a
// low-cardinality label such as "GET /habits/{id}".
func (m *metrics) middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.active.Inc()
			defer m.active.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			label := route(r)
			m.requests.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
			m.duration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
		})
	}
}

// routeOf resolves the registered pattern for r against the muxes serving
// paths below prefix. Unmatched requests share one label.
func routeOf(prefix string, muxes ...*http.ServeMux) func(*http.Request) string {
	return func(r *http.Request) string {
		path, ok := strings.CutPrefix(r.URL.Path, prefix)
		if !ok {
			return "unmatched"
		}
		r2 := new(http.Request)
		*r2 = *r
		u := *r.URL
		u.Path, u.RawPath = path, ""
		r2.URL = &u
		for _, mux := range muxes {
			if _, pattern := mux.Handler(r2); pattern != "" && pattern != "/" {
				return pattern
			}
		}
		return "unmatched"
	}
}
