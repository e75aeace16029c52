package httpapi

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	apimw "github.com/hamed0406/netprobe/internal/httpapi/middleware"
	"github.com/hamed0406/netprobe/internal/rollup"
	"github.com/hamed0406/netprobe/internal/sink"
	"github.com/hamed0406/netprobe/internal/targets"
)

type TCPProber interface {
	Probe(ctx context.Context, host string, port int, timeout time.Duration) domain.Sample
}

type DNSProber interface {
	Probe(ctx context.Context, fqdn, recordType string, resolvers []string, timeout time.Duration) domain.Sample
}

type HTTPProber interface {
	Probe(ctx context.Context, url, method string, timeout time.Duration) domain.Sample
}

// Probers run the ad-hoc probe endpoints.
type Probers struct {
	TCP  TCPProber
	DNS  DNSProber
	HTTP HTTPProber
}

type Server struct {
	Logger   *zap.Logger
	Registry *targets.Registry
	Sinks    *sink.Set
	Store    rollup.Store
	Probes   Probers
	Gatherer prometheus.Gatherer
	Version  string
	Started  time.Time

	now func() time.Time
}

func NewServer(l *zap.Logger, reg *targets.Registry, sinks *sink.Set, store rollup.Store, p Probers) *Server {
	return &Server{
		Logger:   l,
		Registry: reg,
		Sinks:    sinks,
		Store:    store,
		Probes:   p,
		Started:  time.Now().UTC(),
		now:      time.Now,
	}
}

// Router builds the HTTP API. Reads and ad-hoc probes need any key,
// configuration changes need an admin key. Rate limits are per client IP;
// a non-positive rate disables limiting for that group.
func (s *Server) Router(keys apimw.Keys, origins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(origins))

	r.Get("/healthz", s.handleHealth)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	ws := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(origins),
	}

	// Reads and streams share one per-client budget.
	public := apimw.RateLimit(pubRPM, pubBurst)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(public)
			r.Use(apimw.RequireAny(keys))

			r.Get("/config/state", s.handleState)

			r.Post("/ping/tcp", s.handlePingTCP)
			r.Post("/dns/query", s.handleDNSQuery)
			r.Post("/http/probe", s.handleHTTPProbe)

			r.Get("/metrics/recent", s.handleRecent)
			r.Get("/metrics/series", s.handleSeries)
			r.Get("/metrics/rollups", s.handleRollups)
		})

		r.Group(func(r chi.Router) {
			r.Use(public)
			r.Use(apimw.RequireAnyStream(keys))

			r.Get("/stream/events", s.handleSSE)
			r.Get("/stream/ws", s.handleWS(ws))
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst))
			r.Use(apimw.RequireAdmin(keys))

			r.Post("/config/{kind}", s.handleAddTarget)
			r.Delete("/config/{kind}/{id}", s.handleRemoveTarget)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || slices.Contains(origins, o)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": s.Version,
		"started": s.Started,
	})
}
