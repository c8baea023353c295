package serial

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// held returns the number of keys currently held or awaited.
func held(k *Keyed) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func TestKeyed_DoReturnsError(t *testing.T) {
	k := New()
	want := errors.New("boom")

	if err := k.Do("a", func() error { return want }); err != want {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
	if n := held(k); n != 0 {
		t.Errorf("%d keys held after Do, want 0", n)
	}
}

func TestKeyed_NilRunsDirectly(t *testing.T) {
	var k *Keyed
	called := false
	if err := k.Do("a", func() error { called = true; return nil }); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}
}

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := New()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_ = k.Do("asset-1", func() error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()

	if got := maxInside.Load(); got != 1 {
		t.Errorf("max concurrent holders = %d, want 1", got)
	}
	if n := held(k); n != 0 {
		t.Errorf("%d keys held after all Do calls, want 0", n)
	}
}

func TestKeyed_DistinctKeysDoNotBlock(t *testing.T) {
	k := New()
	k.Lock("a")
	defer k.Unlock("a")

	done := make(chan struct{})
	go func() {
		_ = k.Do("b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Do on a different key blocked")
	}
}

func TestKeyed_UnlockUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Unlock of unheld key should panic")
		}
	}()
	New().Unlock("never")
}
