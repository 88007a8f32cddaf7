package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"renovisio_backend/logging"
)

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

func testLogger() *logging.Logger {
	return logging.NewLoggerWithWriters(true, zapcore.AddSync(nopSyncer{}), zapcore.AddSync(nopSyncer{}))
}

func TestManagerShutdownRunsHandlersInOrder(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))

	var order []string
	m.Register("database", 30, func(ctx context.Context) error {
		order = append(order, "database")
		return nil
	})
	m.Register("server", 10, func(ctx context.Context) error {
		order = append(order, "server")
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if len(order) != 2 || order[0] != "server" || order[1] != "database" {
		t.Errorf("execution order = %v", order)
	}
}

func TestManagerShutdownIdempotent(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))
	calls := 0
	m.Register("once", 10, func(ctx context.Context) error {
		calls++
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown returned %v", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times", calls)
	}
}

func TestManagerShutdownReportsHandlerErrors(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))
	m.Register("failing", 10, func(ctx context.Context) error {
		return errors.New("boom")
	})

	if err := m.Shutdown(); err == nil {
		t.Error("expected error from failing handler")
	}
}

func TestManagerWrapOperation(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))

	ran := false
	err := m.WrapOperation(context.Background(), "work", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WrapOperation = %v, ran = %v", err, ran)
	}
	if m.ActiveOperations() != 0 {
		t.Errorf("active = %d after completion", m.ActiveOperations())
	}
}

func TestManagerWrapOperationRejectsDuringShutdown(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	err := m.WrapOperation(context.Background(), "late", func(ctx context.Context) error {
		t.Fatal("operation must not run during shutdown")
		return nil
	})
	if !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("expected ErrTrackerClosed, got %v", err)
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown should report true")
	}
}

func TestManagerWrapOperationHonorsCancelledContext(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.WrapOperation(ctx, "cancelled", func(ctx context.Context) error {
		t.Fatal("operation must not run with a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestManagerShutdownDrainsInFlight(t *testing.T) {
	m := NewManager(testLogger(), WithTimeout(2*time.Second))

	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		m.WrapOperation(context.Background(), "slow", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
		close(finished)
	}()

	<-started
	cleanupRan := make(chan struct{})
	m.Register("after-drain", 10, func(ctx context.Context) error {
		select {
		case <-finished:
		default:
			t.Error("cleanup ran before in-flight operation finished")
		}
		close(cleanupRan)
		return nil
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	<-cleanupRan
}

func TestManagerRegisteredHandlers(t *testing.T) {
	m := NewManager(testLogger())
	m.Register("second", 20, func(ctx context.Context) error { return nil })
	m.Register("first", 10, func(ctx context.Context) error { return nil })

	names := m.RegisteredHandlers()
	if len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Errorf("handlers = %v", names)
	}
}
