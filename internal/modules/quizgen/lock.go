package quizgen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLocked is returned by Locker.Acquire when the key is already held.
	ErrLocked = errors.New("lecture generation already in progress")
	// ErrLockLost is returned by Lease.Refresh once the lease expired or
	// another holder took the key.
	ErrLockLost = errors.New("lecture generation lock lost")
)

// Locker provides mutual exclusion per key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	// Refresh pushes the expiry out by the ttl the lease was acquired with.
	Refresh(ctx context.Context) error
	// Release frees the key if this lease still holds it. Safe to call more
	// than once.
	Release()
}

// LockKey is the per-lecture generation lock key.
func LockKey(lectureID uuid.UUID) string {
	return "lecture:" + lectureID.String() + ":generation"
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	seq   uint64
	clock func() time.Time
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]memoryEntry{}, clock: time.Now}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, ErrLocked
	}
	m.seq++
	m.held[key] = memoryEntry{token: m.seq, expires: now.Add(ttl)}
	return &memoryLease{m: m, key: key, token: m.seq, ttl: ttl}, nil
}

type memoryLease struct {
	m     *MemoryLocker
	key   string
	token uint64
	ttl   time.Duration
	once  sync.Once
}

func (l *memoryLease) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	now := l.m.clock()
	e, ok := l.m.held[l.key]
	if !ok || e.token != l.token || !now.Before(e.expires) {
		return ErrLockLost
	}
	e.expires = now.Add(l.ttl)
	l.m.held[l.key] = e
	return nil
}

func (l *memoryLease) Release() {
	l.once.Do(func() {
		l.m.mu.Lock()
		defer l.m.mu.Unlock()
		// An expired lease may already belong to someone else.
		if e, ok := l.m.held[l.key]; ok && e.token == l.token {
			delete(l.m.held, l.key)
		}
	})
}
