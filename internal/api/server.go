// Package api exposes the polling HTTP surface: stream listing, status,
// frame fetches, logs, and health.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/rtsp2web/internal/api/models"
	"github.com/smazurov/rtsp2web/internal/cache"
	"github.com/smazurov/rtsp2web/internal/logging"
	"github.com/smazurov/rtsp2web/internal/stream"
	"github.com/smazurov/rtsp2web/internal/version"
	"github.com/smazurov/rtsp2web/ui"
)

// StreamService is the part of the stream manager the API needs.
type StreamService interface {
	ListStreams() []stream.Info
	GetFrame(index int) (*cache.Frame, stream.Snapshot, error)
	GetStatus(index int) (stream.Snapshot, error)
	Statuses() []stream.Snapshot
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	// FPS is reported to clients as the suggested poll rate.
	FPS     int
	Service StreamService
	// PrometheusHandler is mounted at /metrics without auth when set.
	PrometheusHandler http.Handler
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	service    StreamService
	options    *Options
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("rtsp2web API", version.String())
	config.Info.Description = "RTSP camera multiplexer serving JPEG frames over HTTP"
	// Empty servers list makes OpenAPI use relative paths, working with any host.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api: api,
		mux: mux,
		// Built here so Stop never races Start for the server handle.
		httpServer: &http.Server{Handler: mux},
		service:    opts.Service,
		options:    opts,
		logger:     logging.GetLogger("api"),
	}

	// CORS first, then request logging, then auth.
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Scrape endpoint bypasses the Huma stack, no auth.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	if frontendHandler, err := ui.Handler(); err == nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			frontendHandler.ServeHTTP(w, r)
		})
	}

	return server
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare a
// security requirement.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	deny := func(ctx huma.Context, msg string, errs ...error) {
		ctx.SetHeader("WWW-Authenticate", `Basic realm="rtsp2web"`)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			deny(ctx, "Authentication required")
			return
		}

		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			deny(ctx, "Invalid authentication type")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
		if err != nil {
			deny(ctx, "Invalid credentials format", err)
			return
		}

		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 {
			deny(ctx, "Invalid credentials format")
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(parts[0]), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(parts[1]), []byte(password)) == 1
		if !userOK || !passOK {
			deny(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// Start runs the HTTP server on the specified address. It blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer.Addr = addr
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully, bounded by ctx. Safe to call
// before or during Start: a stopped server refuses to serve.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}

// GetMux returns the underlying mux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	// Health check, no auth required.
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version, no auth required.
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStreamRoutes()
	s.registerLogRoutes()
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
