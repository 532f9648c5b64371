// Package api provides the HTTP API of the cancellation service: the public
// POST /cancel endpoint called by the embedded cancel buttons and the vendor
// information endpoint used by the embed script.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cancelready/backend/cancellation"
	"github.com/cancelready/backend/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"
)

const (
	// requestTimeout bounds every request. It must exceed the processor
	// timeout plus the two store operations of a cancellation.
	requestTimeout = 45 * time.Second
	// maxBodySize is the largest request body accepted.
	maxBodySize = 64 << 10
)

// Config holds the API configuration.
type Config struct {
	Host         string
	Port         int
	Cancellation *cancellation.Service
}

// API type represents the API HTTP server.
type API struct {
	host         string
	port         int
	router       *chi.Mux
	cancellation *cancellation.Service
	server       *http.Server
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	return &API{
		host:         conf.Host,
		port:         conf.Port,
		cancellation: conf.Cancellation,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.host, a.port),
		Handler:           a.initRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server started with Start.
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// noContent answers the OPTIONS requests once the CORS middleware has set
// the preflight headers.
func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Router returns the handler of the API, building it if needed.
func (a *API) Router() http.Handler {
	if a.router == nil {
		return a.initRouter()
	}
	return a.router
}

// router creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"*"},
		MaxAge:             300, // Maximum value not ignored by any of major browsers
		OptionsPassthrough: true,
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(requestTimeout))

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, vendorsEndpointPrefix) {
			errors.ErrGetOnly.Write(w)
			return
		}
		errors.ErrMethodNotAllowed.Write(w)
	})

	r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(".")); err != nil {
			log.Warnw("failed to write ping response", "error", err)
		}
	})
	// cancel a subscription
	log.Infow("new route", "method", "POST", "path", cancelEndpoint)
	r.Post(cancelEndpoint, a.cancelHandler)
	r.Options(cancelEndpoint, noContent)
	// public vendor information
	log.Infow("new route", "method", "GET", "path", vendorEndpoint)
	r.Get(vendorEndpoint, a.vendorHandler)
	r.Options(vendorEndpoint, noContent)

	a.router = r
	return r
}
