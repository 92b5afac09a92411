// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*SchedulerService)(nil)
)

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stop)
	}
	return f.shutdownErr
}

func serveUntilStarted(t *testing.T, svc suture.Service, started <-chan struct{}) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	select {
	case <-started:
	case <-time.After(time.Second):
		cancel()
		t.Fatal("service did not start")
	}
	return cancel, errCh
}

func TestHTTPServerServiceShutdown(t *testing.T) {
	drainErr := errors.New("drain timeout")
	tests := []struct {
		name        string
		shutdownErr error
		want        error
	}{
		{"graceful", nil, context.Canceled},
		{"shutdown fails", drainErr, drainErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeHTTPServer()
			server.shutdownErr = tt.shutdownErr
			svc := NewHTTPServerService(server, ":0", time.Second)

			cancel, errCh := serveUntilStarted(t, svc, server.started)
			cancel()

			var err error
			select {
			case err = <-errCh:
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Serve() error = %v, want %v", err, tt.want)
			}
			if server.shutdowns.Load() != 1 {
				t.Errorf("Shutdown called %d times", server.shutdowns.Load())
			}
		})
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	server := newFakeHTTPServer()
	server.listenErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(server, ":8080", 0)

	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("default shutdown timeout = %v", svc.shutdownTimeout)
	}
	if err := svc.Serve(context.Background()); !errors.Is(err, server.listenErr) {
		t.Errorf("Serve() error = %v, want %v", err, server.listenErr)
	}
}

type fakeScheduler struct {
	startErr error
	started  chan struct{}
	stops    atomic.Int32
}

func (f *fakeScheduler) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started <- struct{}{}
	return nil
}

func (f *fakeScheduler) Stop() error {
	f.stops.Add(1)
	return nil
}

func TestSchedulerService(t *testing.T) {
	sched := &fakeScheduler{started: make(chan struct{}, 1)}
	svc := NewSchedulerService("maintenance", sched)
	if svc.String() != "maintenance" {
		t.Errorf("String() = %q", svc.String())
	}

	cancel, errCh := serveUntilStarted(t, svc, sched.started)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
	if sched.stops.Load() != 1 {
		t.Errorf("Stop called %d times, want 1", sched.stops.Load())
	}

	failing := NewSchedulerService("maintenance", &fakeScheduler{startErr: errors.New("bad job")})
	if err := failing.Serve(context.Background()); err == nil {
		t.Error("Serve() succeeded after a failed Start")
	}
}
