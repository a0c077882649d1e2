package transfer

import (
	"context"
	"hash/fnv"
	"sync"
)

// lockShards spreads keys over independent maps so unrelated assets never
// contend on the same bookkeeping mutex.
const lockShards = 32

// KeyedMutex serialises work per key (asset ID) without a global lock.
//
// Each key gets a one-slot channel used as a mutex, created on first use
// and dropped once no goroutine holds or waits for it, so memory tracks the
// number of assets currently in flight rather than every asset ever seen.
type KeyedMutex struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	k := &KeyedMutex{}
	for i := range k.shards {
		k.shards[i].locks = make(map[string]*keyLock)
	}
	return k
}

// Lock blocks until key is held or ctx is done. On success the returned
// function releases the key; it must be called exactly once.
//
// Example:
//
//	unlock, err := locks.Lock(ctx, assetID)
//	if err != nil {
//	    return err
//	}
//	defer unlock()
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	sh := k.shard(key)

	sh.mu.Lock()
	l, ok := sh.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		sh.locks[key] = l
	}
	l.refs++
	sh.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		sh.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			sh.release(key, l)
		})
	}, nil
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	n := 0
	for i := range k.shards {
		sh := &k.shards[i]
		sh.mu.Lock()
		n += len(sh.locks)
		sh.mu.Unlock()
	}
	return n
}

func (k *KeyedMutex) shard(key string) *lockShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key)) //nolint:errcheck // hash.Hash never returns an error
	return &k.shards[h.Sum32()%lockShards]
}

func (sh *lockShard) release(key string, l *keyLock) {
	sh.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(sh.locks, key)
	}
	sh.mu.Unlock()
}
