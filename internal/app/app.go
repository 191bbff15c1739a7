// Package app wires this service's configuration, tracing manager, and demo
// HTTP server into a single process lifecycle, the way the teacher repo's
// internal/app package coordinates its own components.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tracefields/internal/config"
	"tracefields/internal/metrics"
	"tracefields/pkg/tracing"
)

// App coordinates the propagation demo server, the metrics server, and the
// tracing manager across the process lifecycle.
type App struct {
	config *config.Config
	logger *logrus.Logger

	tracingManager *tracing.TracingManager
	httpServer     *http.Server
	metricsServer  *metrics.Server

	ctx        context.Context
	cancel     context.CancelFunc
	configFile string
	wg         sync.WaitGroup
}

// New loads configuration from configFile, builds the logger and tracing
// manager, and registers the demo HTTP server's routes.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	tracingManager, err := tracing.NewTracingManager(cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		config:         cfg,
		logger:         logger,
		tracingManager: tracingManager,
		ctx:            ctx,
		cancel:         cancel,
		configFile:     configFile,
	}

	a.initHTTPServer()
	a.initMetricsServer()

	return a, nil
}

func (a *App) initHTTPServer() {
	if !a.config.Server.Enabled {
		return
	}
	router := http.NewServeMux()
	a.registerHandlers(router)

	a.httpServer = &http.Server{
		Addr:    a.config.Server.Host + ":" + strconv.Itoa(a.config.Server.Port),
		Handler: router,
	}
}

func (a *App) initMetricsServer() {
	if !a.config.Metrics.Enabled {
		return
	}
	addr := a.config.Server.Host + ":" + strconv.Itoa(a.config.Metrics.Port)
	a.metricsServer = metrics.NewServer(addr, a.config.Metrics.Path, a.logger)
}

// Start begins serving the metrics and demo HTTP servers in background
// goroutines.
func (a *App) Start() error {
	a.logger.Info("starting tracefields")

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return err
		}
	}

	if a.httpServer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.logger.WithField("addr", a.httpServer.Addr).Info("starting demo http server")
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.WithError(err).Error("demo http server error")
			}
		}()
	}

	a.logger.Info("tracefields started")
	return nil
}

// Stop gracefully shuts down the HTTP servers and the tracing manager.
func (a *App) Stop() error {
	a.logger.Info("stopping tracefields")
	a.cancel()

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("failed to stop demo http server")
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.tracingManager.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Error("failed to shut down tracing manager")
	}

	a.wg.Wait()
	a.logger.Info("tracefields stopped")
	return nil
}

// Run starts the application and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	a.logger.Info("shutdown signal received")
	return a.Stop()
}
