// Package graceful coordinates orderly teardown on SIGINT and SIGTERM:
// background workers stop first, then the HTTP server drains in-flight
// requests, then shared connections close.
package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courier-service/courier_service/pkg/logger"
)

type namedStop struct {
	name string
	fn   func()
}

type namedClose struct {
	name string
	fn   func() error
}

type ShutdownManager struct {
	server  *http.Server
	timeout time.Duration
	logger  *logger.Logger
	stops   []namedStop
	closers []namedClose
}

func NewShutdownManager(server *http.Server, timeout time.Duration, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		timeout: timeout,
		logger:  logger,
	}
}

// OnStop registers a component stopped before the server drains, in
// registration order. Workers belong here so no new chain activity
// starts while requests finish.
func (sm *ShutdownManager) OnStop(name string, fn func()) {
	sm.stops = append(sm.stops, namedStop{name: name, fn: fn})
}

// OnClose registers a connection closed after the server has drained.
func (sm *ShutdownManager) OnClose(name string, fn func() error) {
	sm.closers = append(sm.closers, namedClose{name: name, fn: fn})
}

func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	for _, s := range sm.stops {
		sm.logger.Info("Stopping component", "component", s.name)
		s.fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("Server forced shutdown", "error", err)
	}

	for _, c := range sm.closers {
		if err := c.fn(); err != nil {
			sm.logger.Warn("Component close error", "component", c.name, "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
