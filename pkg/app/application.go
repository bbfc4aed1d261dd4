package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rentkar/internal/health"
	"rentkar/pkg/config"
	"rentkar/pkg/contracts"
	"rentkar/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type Application struct {
	cfg            *config.Config
	server         *http.Server
	healthHandler  http.Handler
	apiHandler     http.Handler
	streamHandler  http.Handler
	shutdownHooks  []func()
	streamPrefixes []string
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// OnShutdown registers a hook that runs during graceful shutdown, before
// the HTTP server drains. Hooks run in registration order.
func (a *Application) OnShutdown(fn func()) {
	a.shutdownHooks = append(a.shutdownHooks, fn)
}

// SetApp wires the three route groups: health probes, the JSON API, and
// the streaming endpoints. Streaming routes skip the request timeout and
// body middleware, which would sever long-lived connections.
func (a *Application) SetApp(apiHandlers []contracts.Handler, streamHandler contracts.Handler) {
	a.setHealthHandler()
	a.setAPIHandler(apiHandlers)
	a.setStreamHandler(streamHandler)
	a.setAppServer()
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	health.NewHandler(a.cfg.Client, a.cfg.Log).RegisterRoutes(healthRouter)

	var handler http.Handler = healthRouter
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.healthHandler = handler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAPIHandler(apiHandlers []contracts.Handler) {
	apiRouter := httprouter.New()
	for _, h := range apiHandlers {
		h.RegisterRoutes(apiRouter)
	}

	var handler http.Handler = apiRouter
	handler = middleware.RequestTimeout(a.cfg.RequestTimeout)(handler)
	handler = middleware.ContentTypeValidation(a.cfg.Log)(handler)
	handler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.apiHandler = handler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setStreamHandler(streamHandler contracts.Handler) {
	streamRouter := httprouter.New()
	streamHandler.RegisterRoutes(streamRouter)

	var handler http.Handler = streamRouter
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.streamHandler = handler
	a.streamPrefixes = []string{"/api/v1/events", "/api/v1/tracking/ws"}
	a.cfg.Log.Info("Streaming endpoints configured without request timeout")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	for _, prefix := range a.streamPrefixes {
		mux.Handle(prefix, a.streamHandler)
	}
	mux.Handle("/", a.apiHandler)

	a.server = &http.Server{
		Addr:        ":" + a.cfg.Port,
		Handler:     mux,
		ReadTimeout: a.cfg.ReadTimeout,
		// WriteTimeout stays unset: it would cut SSE and websocket
		// connections. The API routes get their deadline from the
		// RequestTimeout middleware instead.
		IdleTimeout: a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	for _, hook := range a.shutdownHooks {
		hook()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
