package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "asset101")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max holders = %d, want 1", maxSeen.Load())
	}
	if k.Len() != 0 {
		t.Errorf("Len() = %d after release, want 0", k.Len())
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := NewKeyedMutex()

	unlockA, err := k.Lock(context.Background(), "asset101")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx, "asset102")
	if err != nil {
		t.Fatalf("Lock(other key) error = %v", err)
	}
	unlockB()

	if k.Len() != 1 {
		t.Errorf("Len() = %d, want 1", k.Len())
	}
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()

	unlock, err := k.Lock(context.Background(), "asset101")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, "asset101"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock() error = %v, want DeadlineExceeded", err)
	}

	unlock()
	if k.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after the waiter gave up and the holder released", k.Len())
	}

	// The key is usable again.
	unlock, err = k.Lock(context.Background(), "asset101")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	unlock()
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()

	unlock, err := k.Lock(context.Background(), "asset101")
	if err != nil {
		t.Fatal(err)
	}
	unlock()
	unlock()

	if k.Len() != 0 {
		t.Errorf("Len() = %d, want 0", k.Len())
	}
}
