// Package httpapi exposes the request path of the sync service: the REST
// surface mutations and resyncs go through, plus the realtime upgrade
// endpoint. Routing is chi; everything under /api requires a bearer token.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/service"
)

// TokenVerifier decodes a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// New builds the HTTP server: router, middlewares, route registration.
// The realtime handler is injected so the transport stays swappable.
func New(
	addr string,
	auth service.AuthService,
	urls service.URLService,
	devices service.DeviceService,
	realtime http.Handler,
	log *zap.Logger,
) *Server {
	h := &handlers{auth: auth, urls: urls, devices: devices, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.healthz)
	r.Post("/auth/token", h.mintToken)
	r.Handle("/ws", realtime)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireBearer(auth, log))
		r.Get("/me", h.me)
		r.Get("/urls", h.listURLs)
		r.Post("/urls", h.addURLs)
		r.Delete("/urls", h.deleteURLs)
		r.Get("/devices", h.listDevices)
		r.Post("/devices", h.registerDevice)
	})

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start runs the HTTP server and blocks until error or shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requireBearer authenticates Authorization: Bearer <token> and stores the
// decoded user id in the request context. Failures are terminal 401s, the
// client reacts by dropping its cached credential.
func requireBearer(auth TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			userID, err := auth.Verify(strings.TrimPrefix(header, prefix))
			if err != nil {
				log.Debug("token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
