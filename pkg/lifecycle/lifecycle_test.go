package lifecycle_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/scribe/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() error {
			count.Add(1)
			return nil
		})
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup failed: %v", err)
	}

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
	if !lc.Ready() {
		t.Error("should be ready after successful startup")
	}
}

func TestFailedStartupHookBlocksReadiness(t *testing.T) {
	lc := lifecycle.New()
	boom := errors.New("ping failed")

	lc.OnStartup(func() error { return nil })
	lc.OnStartup(func() error { return boom })

	err := lc.WaitForStartup()
	if !errors.Is(err, boom) {
		t.Fatalf("WaitForStartup: got %v, want %v", err, boom)
	}
	if lc.Ready() {
		t.Error("should not be ready after a failed startup hook")
	}
	if !errors.Is(lc.Err(), boom) {
		t.Errorf("Err: got %v, want %v", lc.Err(), boom)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
	if lc.Ready() {
		t.Error("should not report ready after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}

func TestDrainCompletesBeforeResourcesRelease(t *testing.T) {
	lc := lifecycle.New()

	var (
		drainFinished atomic.Bool
		releasedEarly atomic.Bool
		released      atomic.Bool
	)

	lc.OnDrain(func() {
		<-lc.Context().Done()
		time.Sleep(50 * time.Millisecond)
		drainFinished.Store(true)
	})

	lc.OnShutdown(func() {
		<-lc.Drained()
		if !drainFinished.Load() {
			releasedEarly.Store(true)
		}
		released.Store(true)
	})

	select {
	case <-lc.Drained():
		t.Fatal("drained should not close before shutdown")
	default:
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if releasedEarly.Load() {
		t.Error("resource released while drain hook was still running")
	}
	if !released.Load() {
		t.Error("shutdown hook did not run")
	}
}

func TestDrainedClosesWithoutDrainHooks(t *testing.T) {
	lc := lifecycle.New()
	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case <-lc.Drained():
	case <-time.After(time.Second):
		t.Fatal("drained should close after shutdown")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Errorf("second shutdown failed: %v", err)
	}
}
