package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakePinger) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeReconciler struct {
	mu         sync.Mutex
	pending    bool
	reconciles int
}

func (f *fakeReconciler) HasPending(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeReconciler) ReconcilePending(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciles++
	f.pending = false
	return nil
}

func (f *fakeReconciler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconciles
}

func TestWorker_RedeliversWhenBackendReturns(t *testing.T) {
	pinger := &fakePinger{err: errors.New("connection refused")}
	reconciler := &fakeReconciler{pending: true}
	w := NewReconcileWorker(pinger, reconciler, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	// Offline: no redelivery attempts.
	time.Sleep(50 * time.Millisecond)
	if got := reconciler.count(); got != 0 {
		t.Fatalf("expected no redelivery while offline, got %d", got)
	}

	// Back online: exactly one redelivery clears the pending flag.
	pinger.setErr(nil)
	deadline := time.After(2 * time.Second)
	for reconciler.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no redelivery after backend returned")
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := reconciler.count(); got != 1 {
		t.Errorf("expected one redelivery, got %d", got)
	}

	cancel()
	<-done
}

func TestWorker_IdleWithoutPending(t *testing.T) {
	pinger := &fakePinger{}
	reconciler := &fakeReconciler{pending: false}
	w := NewReconcileWorker(pinger, reconciler, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := reconciler.count(); got != 0 {
		t.Errorf("expected no redelivery without pending, got %d", got)
	}
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	pinger := &fakePinger{}
	reconciler := &fakeReconciler{pending: true}
	// Long interval so the loop never ticks; only drain can deliver.
	w := NewReconcileWorker(pinger, reconciler, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if got := reconciler.count(); got != 1 {
		t.Errorf("expected the shutdown drain to redeliver, got %d", got)
	}
}
