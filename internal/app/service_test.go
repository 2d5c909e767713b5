package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error

	mu      sync.Mutex
	stopped []string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, f.name)
	f.mu.Unlock()
	return f.stopErr
}

func TestRunnerStopsAllWhenOneServiceFails(t *testing.T) {
	failing := &fakeService{name: "http", startErr: errors.New("bind failed")}
	healthy := &fakeService{name: "worker"}
	runner := NewRunner(failing, nil, healthy)
	if names := runner.Names(); len(names) != 2 || names[0] != "http" || names[1] != "worker" {
		t.Fatalf("unexpected service names %v", names)
	}

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "http: bind failed" {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if len(failing.stopped) != 1 || len(healthy.stopped) != 1 {
		t.Fatalf("every service should be stopped once, got %v %v", failing.stopped, healthy.stopped)
	}
}

func TestRunnerCancelReturnsStopErrors(t *testing.T) {
	svc := &fakeService{name: "worker", stopErr: errors.New("drain timeout")}
	runner := NewRunner(svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Run(ctx, time.Second, nil)
	if err == nil || err.Error() != "stop worker: drain timeout" {
		t.Fatalf("expected stop error only, got %v", err)
	}

	clean := NewRunner(&fakeService{name: "http"})
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := clean.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should be clean, got %v", err)
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("empty runner should fail")
	}
}
