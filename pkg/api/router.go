package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/api/handlers"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/stores - Extent store health
//   - GET /metrics - Prometheus metrics, when enabled
//   - GET /api/v1/disks - Disk list
//   - GET, DELETE /api/v1/disks/{name} - Describe or remove a disk
//   - GET /api/v1/disks/{name}/stats - Per-disk I/O statistics
//   - POST /api/v1/disks/{name}/sync - Write back the cache
//   - POST /api/v1/disks/{name}/invalidate - Write back and drop the cache
//   - GET, PUT /api/v1/disks/{name}/flags - Read or change flags
//   - POST /api/v1/disks/{name}/erase - Overwrite a sector range
//   - GET, PUT /api/v1/disks/{name}/sectors - Raw sector transfer
//   - PUT /api/v1/disks/{name}/door - Door and door lock control
//   - GET /api/v1/disks/{name}/media - Media presence and change
//   - GET /api/v1/stats - Aggregate I/O statistics
//   - POST /api/v1/sync - Sync every disk
//   - GET, POST /api/v1/volumes - Logical volumes
func NewRouter(registry *disk.Registry, stores []handlers.NamedStore) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(registry, stores)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	if metrics.IsEnabled() {
		r.Handle("/metrics", metrics.Handler())
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if registry == nil {
		return r
	}
	diskHandler := handlers.NewDiskHandler(registry)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", diskHandler.TotalStats)
		r.Post("/sync", diskHandler.SyncAll)

		r.Route("/volumes", func(r chi.Router) {
			r.Get("/", diskHandler.ListVolumes)
			r.Post("/", diskHandler.CreateVolume)
		})

		r.Route("/disks", func(r chi.Router) {
			r.Get("/", diskHandler.List)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", diskHandler.Get)
				r.Delete("/", diskHandler.Remove)
				r.Get("/stats", diskHandler.Stats)
				r.Post("/sync", diskHandler.Sync)
				r.Post("/invalidate", diskHandler.Invalidate)
				r.Get("/flags", diskHandler.GetFlags)
				r.Put("/flags", diskHandler.SetFlags)
				r.Post("/erase", diskHandler.Erase)
				r.Get("/sectors", diskHandler.ReadSectors)
				r.Put("/sectors", diskHandler.WriteSectors)
				r.Put("/door", diskHandler.Door)
				r.Get("/media", diskHandler.Media)
			})
		})
	})

	return r
}

// requestLogger is a middleware that logs HTTP requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		// Probes and scrapes are frequent, keep them at DEBUG
		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isQuietPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
