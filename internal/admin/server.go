// Package admin provides brokerd's HTTP introspection surface, grounded
// on packetd-packetd/server.Server: a gorilla/mux router wrapped with
// typed route-registration helpers and a config-gated constructor.
package admin

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amqp-broker/brokerd/internal/config"
	"github.com/amqp-broker/brokerd/internal/log"
)

// ConnectionLister is implemented by whatever tracks live connections
// (the frame bus registry in cmd/brokerd); kept as an interface so this
// package doesn't import internal/broker directly.
type ConnectionLister interface {
	QueueDepths() map[string][2]int
}

// Server is brokerd's admin HTTP surface: /healthz, /metrics,
// /connections.
type Server struct {
	cfg    config.AdminConfig
	router *mux.Router
	server *http.Server
	lister ConnectionLister
}

// New returns nil when the admin surface is disabled in config; callers
// must check before using it, matching server.New's nil-on-disabled
// convention.
func New(cfg config.AdminConfig, lister ConnectionLister) *Server {
	if !cfg.Enabled {
		return nil
	}
	router := mux.NewRouter()
	s := &Server{
		cfg:    cfg,
		router: router,
		lister: lister,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.RegisterGetRoute("/healthz", s.routeHealthz)
	s.RegisterGetRoute("/metrics", s.routeMetrics)
	s.RegisterGetRoute("/connections", s.routeConnections)
}

func (s *Server) RegisterGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	log.Info("admin server listening", zap.String("address", s.cfg.Address))
	return s.server.Serve(l)
}

func (s *Server) routeHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) routeMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) routeConnections(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.lister.QueueDepths())
}
