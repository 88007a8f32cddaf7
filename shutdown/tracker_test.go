package shutdown

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTrackerStartDone(t *testing.T) {
	tracker := NewOperationTracker()

	if !tracker.Start() {
		t.Fatal("Start on open tracker must succeed")
	}
	if tracker.ActiveCount() != 1 {
		t.Errorf("active = %d, want 1", tracker.ActiveCount())
	}
	tracker.Done()
	if tracker.ActiveCount() != 0 {
		t.Errorf("active = %d, want 0", tracker.ActiveCount())
	}
}

func TestTrackerRejectsAfterClose(t *testing.T) {
	tracker := NewOperationTracker()
	tracker.Close()

	if tracker.Start() {
		t.Error("Start on closed tracker must fail")
	}
	if !tracker.IsClosed() {
		t.Error("IsClosed must report true")
	}
}

func TestTrackerWaitDrains(t *testing.T) {
	tracker := NewOperationTracker()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		if !tracker.Start() {
			t.Fatal("Start failed")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			tracker.Done()
		}()
	}
	tracker.Close()

	if err := tracker.Wait(time.Second); err != nil {
		t.Errorf("Wait should succeed once operations finish: %v", err)
	}
	wg.Wait()
}

func TestTrackerWaitTimeout(t *testing.T) {
	tracker := NewOperationTracker()
	if !tracker.Start() {
		t.Fatal("Start failed")
	}

	err := tracker.Wait(30 * time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
	tracker.Done()
}

func TestTrackerRunningOperationsSurviveClose(t *testing.T) {
	tracker := NewOperationTracker()
	if !tracker.Start() {
		t.Fatal("Start failed")
	}
	tracker.Close()

	if tracker.ActiveCount() != 1 {
		t.Errorf("close must not cancel running operations, active = %d", tracker.ActiveCount())
	}
	tracker.Done()
}
