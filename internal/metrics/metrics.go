// Package metrics is the ambient observability surface: connection counts,
// per-command counters, and sweep counters, exposed over a side HTTP
// listener. None of it is required for RESP-level conformance; disabling
// it must not change observable protocol behavior.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the server updates, plus the live-store
// size sampler used for the store_keys gauge.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	ExpiredKeysTotal  prometheus.Counter
}

// StoreSizer reports how many entries the store currently holds; it is
// sampled lazily whenever /metrics is scraped.
type StoreSizer interface {
	Len() int
}

// NewRegistry builds a fresh metrics registry and, if sizer is non-nil,
// wires a store_keys gauge sampled on every scrape.
func NewRegistry(sizer StoreSizer) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ConnectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "redikv_connections_active",
			Help: "Number of currently open client connections.",
		}),
		CommandsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "redikv_commands_total",
			Help: "Commands dispatched, by command name.",
		}, []string{"command"}),
		ExpiredKeysTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "redikv_expired_keys_total",
			Help: "Keys removed by the background expiration sweeper.",
		}),
	}

	if sizer != nil {
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "redikv_store_keys",
			Help: "Number of entries currently held in the store.",
		}, func() float64 { return float64(sizer.Len()) })
	}

	return r
}

// Server serves /metrics and /healthz on a dedicated listener bound to the
// address given to NewServer.
type Server struct {
	httpServer *http.Server
}

// NewServer builds (but does not start) an HTTP server for addr exposing
// reg's metrics.
func NewServer(addr string, reg *Registry) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in the background. The returned error channel
// receives exactly one value: the result of ListenAndServe once it returns
// (nil only happens after a graceful Shutdown).
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
