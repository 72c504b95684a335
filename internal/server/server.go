// Package server exposes the hub over HTTP: the JSON API behind the
// dashboard's filter panel, statistics, renderers, and regional report,
// plus the websocket pushing live condition updates.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rmohub/internal/config"
	"rmohub/internal/geo"
	"rmohub/internal/model"
	"rmohub/internal/render"
	"rmohub/internal/report"
	"rmohub/internal/stats"
	"rmohub/internal/store"
)

// heartbeatPeriod is how often the websocket pushes a fresh network-wide
// summary to all clients.
const heartbeatPeriod = 30 * time.Second

// Server wires the services to the router.
type Server struct {
	cfg         config.Config
	network     *geo.Network
	store       *store.Store
	stats       *stats.Service
	renderers   *render.Service
	laRenderers *render.AuthorityService
	reports     *report.Builder
	hub         *Hub
}

// New assembles the server from its services.
func New(cfg config.Config, network *geo.Network, st *store.Store, statsSvc *stats.Service,
	renderers *render.Service, laRenderers *render.AuthorityService, reports *report.Builder, hub *Hub) *Server {
	return &Server{
		cfg:         cfg,
		network:     network,
		store:       st,
		stats:       statsSvc,
		renderers:   renderers,
		laRenderers: laRenderers,
		reports:     reports,
		hub:         hub,
	}
}

// Hub returns the websocket hub, for wiring into the ingest feed.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the HTTP handler with middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/filters", s.handleFilters).Methods("GET")
	api.HandleFunc("/segments", s.handleSegments).Methods("GET")
	api.HandleFunc("/segments/nearest", s.handleNearestSegment).Methods("GET")
	api.HandleFunc("/stats/summary", s.handleSummary).Methods("POST")
	api.HandleFunc("/stats/distribution", s.handleDistribution).Methods("POST")
	api.HandleFunc("/stats/trend", s.handleTrend).Methods("POST")
	api.HandleFunc("/stats/compare", s.handleCompare).Methods("POST")
	api.HandleFunc("/renderers/{kpi}", s.handleRenderer).Methods("GET")
	api.HandleFunc("/renderers/{kpi}/choropleth", s.handleChoropleth).Methods("GET")
	api.HandleFunc("/report", s.handleReport).Methods("GET")
	api.HandleFunc("/report/{section}", s.handleReportSection).Methods("GET")

	r.HandleFunc("/ws/condition", s.hub.Handle)

	r.Use(loggingMiddleware)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully. The heartbeat pushing periodic summaries to websocket
// clients runs alongside.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", s.cfg.Listen).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return s.heartbeat(ctx)
	})

	return g.Wait()
}

// heartbeat periodically pushes the unfiltered summary so dashboards
// refresh their headline figures without polling.
func (s *Server) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			sums, err := s.stats.Summary(ctx, model.Filter{})
			if err != nil {
				log.WithError(err).Warn("heartbeat summary failed")
				continue
			}
			s.hub.Broadcast(map[string]any{"type": "summary", "summary": sums})
		}
	}
}
