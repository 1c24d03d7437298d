// Package server provides the HTTP server for sitwell.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/server/api"
	"github.com/ayusman/sitwell/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store
	Log       logrus.FieldLogger
	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
}

// Server represents the HTTP server for the sitwell application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	log     logrus.FieldLogger
	start   time.Time
	httpSrv *http.Server
	// cancel ends long-lived requests such as the MJPEG stream on Shutdown
	cancel context.CancelFunc
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Log
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    logger.WithField("component", "server"),
		start:  time.Now(),
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.httpSrv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.setupRoutes()

	mws := []middleware{recoverPanics(s.log), requestID, logRequests(s.log)}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		mws = append(mws, newRateLimiter(rate.Limit(config.RateLimit), burst).middleware(s.log))
	}
	s.handler = chain(s.mux, mws...)

	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		a := s.config.App
		s.mux.HandleFunc("/api/config", s.handleConfig)
		s.mux.Handle("/api/posture/", api.NewPostureHandler(a, s.log))

		monitor := api.NewMonitorHandler(a, s.log)
		s.mux.Handle("/api/monitor", monitor)
		s.mux.Handle("/api/monitor/", monitor)

		s.mux.Handle("/api/ws", NewAnalyzeSocket(a, s.log))
		s.mux.Handle("/api/live", NewLiveHandler(a, s.log))
		s.mux.Handle("/api/stream", NewStreamHandler(a))
	}

	if s.config.Store != nil {
		assessments := api.NewAssessmentHandler(s.config.Store, s.log)
		s.mux.Handle("/api/assessments", assessments)
		s.mux.Handle("/api/assessments/", assessments)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	if s.config.Store != nil {
		if err := s.config.Store.Ping(); err != nil {
			log.FromContext(r.Context(), s.log).WithError(err).Warn("database ping failed")
			response["status"] = "degraded"
			response["database"] = "unavailable"
		} else {
			response["database"] = "ok"
		}
	}
	if s.config.App != nil {
		response["detector"] = s.config.App.Detector() != nil
		response["monitoring"] = s.config.App.Running()
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// handleConfig handles GET /api/config and reports the scoring parameters in effect.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.App.PostureConfig())
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after a graceful Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv.Addr = addr

	s.log.WithField("addr", addr).Info("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.httpSrv.Shutdown(ctx)
}
