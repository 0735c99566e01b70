// Package limiter provides per-actor concurrency guards.
package limiter

import (
	"errors"
	"strconv"
	"sync"

	"github.com/moby/locker"
)

var (
	// ErrBusy means the actor already holds a slot
	ErrBusy = errors.New("actor already has an operation in flight")
	// ErrAtCapacity means the global limit is reached
	ErrAtCapacity = errors.New("too many operations in flight")
)

// InFlight admits at most one active operation per actor
type InFlight struct {
	mu        sync.Mutex
	active    map[int64]struct{}
	maxGlobal int
}

// NewInFlight creates a new per-actor limiter.
// maxGlobal of 0 means no limit across actors.
func NewInFlight(maxGlobal int) *InFlight {
	return &InFlight{
		active:    make(map[int64]struct{}),
		maxGlobal: maxGlobal,
	}
}

// TryAcquire reserves the actor's slot without blocking.
// Fails with ErrBusy or ErrAtCapacity.
func (l *InFlight) TryAcquire(actorID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.active[actorID]; exists {
		return ErrBusy
	}
	if l.maxGlobal > 0 && len(l.active) >= l.maxGlobal {
		return ErrAtCapacity
	}

	l.active[actorID] = struct{}{}
	return nil
}

// Release frees the actor's slot
func (l *InFlight) Release(actorID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, actorID)
}

// Active returns the number of held slots
func (l *InFlight) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// KeyedMutex serializes critical sections per actor while letting distinct
// actors proceed in parallel. The zero value is ready to use.
type KeyedMutex struct {
	locks locker.Locker
}

// Lock blocks until the actor's section is free and returns its unlock func.
// Calling unlock more than once is a no-op.
func (k *KeyedMutex) Lock(actorID int64) (unlock func()) {
	name := strconv.FormatInt(actorID, 10)
	k.locks.Lock(name)

	var once sync.Once
	return func() {
		once.Do(func() {
			// Only fails for a name that is not locked, which once rules out
			_ = k.locks.Unlock(name)
		})
	}
}
