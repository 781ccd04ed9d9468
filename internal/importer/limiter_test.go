package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustAcquire(t *testing.T, l *Limiter) {
	t.Helper()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
}

// ============================================================================
// Slot Accounting Tests
// ============================================================================

func TestLimiter_Accounting(t *testing.T) {
	l := NewLimiter(2, time.Second)

	steps := []struct {
		name          string
		op            func()
		wantActive    int
		wantAvailable int
	}{
		{"initial", func() {}, 0, 2},
		{"first acquire", func() { mustAcquire(t, l) }, 1, 1},
		{"second acquire", func() { mustAcquire(t, l) }, 2, 0},
		{"release", l.Release, 1, 1},
		{"release last", l.Release, 0, 2},
	}

	for _, s := range steps {
		s.op()
		st := l.Status()
		if st.Active != s.wantActive || st.Available != s.wantAvailable {
			t.Errorf("%s: status = %+v, want active=%d available=%d", s.name, st, s.wantActive, s.wantAvailable)
		}
		if st.MaxConcurrent != 2 {
			t.Errorf("%s: MaxConcurrent = %d, want 2", s.name, st.MaxConcurrent)
		}
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(-1, 0)
	if got := l.MaxConcurrent(); got != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}
	if l.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultMaxWaitTime)
	}
}

// ============================================================================
// Waiting Tests
// ============================================================================

func TestLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	mustAcquire(t, l)
	defer l.Release()

	start := time.Now()
	err := l.Acquire(context.Background())
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("err = %v, want ErrTooManyImports", err)
	}
	if waited := time.Since(start); waited < 40*time.Millisecond {
		t.Errorf("gave up after %v, want about 50ms", waited)
	}
}

func TestLimiter_CallerCancel(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	mustAcquire(t, l)
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire ignored cancellation")
	}
}

func TestLimiter_ReleaseWakesWaiter(t *testing.T) {
	l := NewLimiter(1, time.Second)
	mustAcquire(t, l)

	got := make(chan struct{})
	go func() {
		if err := l.Acquire(context.Background()); err != nil {
			t.Errorf("waiting Acquire: %v", err)
			return
		}
		close(got)
		l.Release()
	}()

	time.Sleep(20 * time.Millisecond)
	l.Release()

	select {
	case <-got:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiter not woken by Release")
	}
}

func TestLimiter_NeverExceedsMax(t *testing.T) {
	const maxRuns = 3
	l := NewLimiter(maxRuns, time.Second)

	var peak, current atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			l.Release()
		}()
	}
	wg.Wait()

	if peak.Load() > maxRuns {
		t.Errorf("peak concurrency %d exceeds %d", peak.Load(), maxRuns)
	}
	if l.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d after all released", l.ActiveCount())
	}
}

// ============================================================================
// Drain Tests
// ============================================================================

func TestLimiter_WaitForDrain(t *testing.T) {
	t.Run("idle returns immediately", func(t *testing.T) {
		if err := NewLimiter(1, time.Second).WaitForDrain(context.Background()); err != nil {
			t.Errorf("WaitForDrain = %v", err)
		}
	})

	t.Run("waits for last release", func(t *testing.T) {
		l := NewLimiter(2, time.Second)
		mustAcquire(t, l)
		mustAcquire(t, l)

		done := make(chan error, 1)
		go func() { done <- l.WaitForDrain(context.Background()) }()

		l.Release()
		select {
		case <-done:
			t.Fatal("drained with one run active")
		case <-time.After(3 * drainPollInterval):
		}

		l.Release()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("WaitForDrain = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("WaitForDrain did not return")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		l := NewLimiter(1, time.Second)
		mustAcquire(t, l)
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitForDrain = %v, want DeadlineExceeded", err)
		}
	})
}
