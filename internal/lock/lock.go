// Package lock serializes pipeline runs per artifact stem.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock is held")

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker hands out non-blocking, lease-based locks.
type Locker interface {
	TryLock(ctx context.Context, key string) (Unlock, error)
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	leases map[string]lease
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker returns a MemoryLocker whose leases expire after ttl.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{ttl: ttl, now: time.Now, leases: make(map[string]lease)}
}

var tokens struct {
	sync.Mutex
	next uint64
}

func nextToken() uint64 {
	tokens.Lock()
	defer tokens.Unlock()
	tokens.next++
	return tokens.next
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, ErrLocked
	}
	token := nextToken()
	l.leases[key] = lease{token: token, expires: now.Add(l.ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// An expired lease may have been taken over.
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}
