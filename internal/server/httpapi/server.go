// Package httpapi exposes the gateway over HTTP with a chi router.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/resumegate/internal/logging"
	"github.com/dmitrijs2005/resumegate/internal/netx"
	"github.com/dmitrijs2005/resumegate/internal/server/config"
	"github.com/dmitrijs2005/resumegate/internal/server/metrics"
	"github.com/dmitrijs2005/resumegate/internal/server/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

type Server struct {
	address  string
	gate     *services.GateService
	accounts *services.AccountService
	metrics  *metrics.Metrics
	throttle *Throttle
	config   *config.Config
	logger   logging.Logger
}

// NewServer wires the handlers. accounts may be nil, in which case the
// multi-tenant routes are not mounted.
func NewServer(cfg *config.Config, l logging.Logger, gate *services.GateService, accounts *services.AccountService, m *metrics.Metrics, throttle *Throttle) *Server {
	return &Server{
		address:  cfg.HTTPAddr,
		gate:     gate,
		accounts: accounts,
		metrics:  m,
		throttle: throttle,
		config:   cfg,
		logger:   l.With("module", "http_server"),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.config.CORSAllowOrigin))
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	throttled := s.throttle.Middleware(s.clientID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/check-attempts", s.checkAttempts)
		r.Get("/list-versions", s.listVersions)

		r.Group(func(r chi.Router) {
			r.Use(throttled)
			r.Post("/download-resume", s.downloadResume)
			r.Post("/upload-resume", s.uploadResume)
			r.Post("/admin-auth", s.adminAuth)
		})

		if s.accounts == nil {
			return
		}

		r.With(throttled).Post("/auth/google", s.googleAuth)
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/resumes", s.listResumes)
			r.With(throttled).Post("/resumes", s.uploadTenantResume)
			r.Get("/resumes/{id}/download", s.downloadTenantResume)
			r.With(throttled).Delete("/resumes/{id}", s.deleteTenantResume)
		})
	})

	return r
}

func (s *Server) clientID(r *http.Request) string {
	return netx.ClientIP(r, s.config.TrustRemoteAddr)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
