package main

import (
	"context"
	"sync"
	"time"

	"github.com/lookatitude/avatar-gateway/assetstore"
	"github.com/lookatitude/avatar-gateway/core"
	"github.com/lookatitude/avatar-gateway/server"
)

// storeLifecycle adapts assetstore.Store to core.Lifecycle so the gateway's
// startup/shutdown sequencing and health reporting go through one
// core.App rather than being special-cased per component. The store itself
// needs no start/stop step; Health is the part worth sharing with core.App's
// HealthCheck.
type storeLifecycle struct {
	store *assetstore.Store
}

func (s *storeLifecycle) Start(ctx context.Context) error { return nil }
func (s *storeLifecycle) Stop(ctx context.Context) error  { return nil }

func (s *storeLifecycle) Health() core.HealthStatus {
	if err := s.store.Writable(); err != nil {
		return core.HealthStatus{Status: core.HealthUnhealthy, Message: err.Error(), Timestamp: time.Now()}
	}
	return core.HealthStatus{Status: core.HealthHealthy, Timestamp: time.Now()}
}

// serverLifecycle adapts server.ServerAdapter to core.Lifecycle. Serve is
// long-running by design (it blocks until ctx is canceled), so Start
// launches it in a goroutine and returns immediately rather than blocking
// App.Start for the gateway's entire run; Stop performs the adapter's
// graceful drain.
type serverLifecycle struct {
	adapter server.ServerAdapter
	addr    string

	mu      sync.Mutex
	exited  bool
	exitErr error
}

func (s *serverLifecycle) Start(ctx context.Context) error {
	go func() {
		err := s.adapter.Serve(ctx, s.addr)
		s.mu.Lock()
		s.exited = true
		s.exitErr = err
		s.mu.Unlock()
	}()
	return nil
}

func (s *serverLifecycle) Stop(ctx context.Context) error {
	return s.adapter.Shutdown(ctx)
}

func (s *serverLifecycle) Health() core.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		msg := "server exited"
		if s.exitErr != nil {
			msg = s.exitErr.Error()
		}
		return core.HealthStatus{Status: core.HealthUnhealthy, Message: msg, Timestamp: time.Now()}
	}
	return core.HealthStatus{Status: core.HealthHealthy, Timestamp: time.Now()}
}
