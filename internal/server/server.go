// Package server exposes the dashboard API and the syndication feeds over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/server/api"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqAPIKey := r.Header.Get("X-API-Key")
			if reqAPIKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqAPIKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the HTTP handler: the /v1 dashboard API behind the API key,
// public syndication feeds and the health check, wrapped in request logging.
func NewRouter(h *api.Handler, db Pinger, logger zerolog.Logger, apiKey string) http.Handler {
	logger = logger.With().Str("service", "syncer-api").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheckHandler(db))
	r.Get("/feeds/{file}", h.Syndication)
	r.Route("/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(apiKey))
		h.Routes(r)
	})

	if apiKey != "" {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}

	// Set up middleware chain for logging and request tracking
	var handler http.Handler = r
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(handler)
	handler = hlog.RequestIDHandler("req_id", "Request-Id")(handler)
	handler = hlog.UserAgentHandler("user_agent")(handler)
	handler = hlog.RemoteAddrHandler("remote_addr")(handler)
	handler = hlog.URLHandler("url")(handler)
	handler = hlog.MethodHandler("method")(handler)
	handler = hlog.NewHandler(logger)(handler)
	return handler
}

// Run serves handler on listenAddr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, listenAddr string, handler http.Handler, logger zerolog.Logger) error {
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Feed refreshes and login polling hold the request open on the upstream.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err

	case <-ctx.Done():
		logger.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler responds 200 OK while the database answers pings.
func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Health check request received")

		if err := db.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("Database ping failed")
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}
