package wallet

import (
	"context"
	"sync"

	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// AccountMutex serializes wallet operations per account address. At most
// one WithLock body runs per address at a time; bodies for different
// addresses proceed independently. Blocked callers are woken in FIFO
// order (the runtime's channel wait queue), so each caller observes the
// complete effects of its predecessor.
type AccountMutex struct {
	mu    sync.Mutex
	locks map[types.Address]*accountLock
}

// accountLock is a token channel: receiving takes the lock, sending
// returns it. refs counts holders plus waiters so idle entries can be
// dropped from the map.
type accountLock struct {
	ch   chan struct{}
	refs int
}

// NewAccountMutex creates an empty account mutex registry.
func NewAccountMutex() *AccountMutex {
	return &AccountMutex{locks: make(map[types.Address]*accountLock)}
}

// WithLock runs fn while holding the lock for addr. The context is
// honored only while waiting for the lock; once fn starts it always runs
// to completion and the lock is released on every exit path, including a
// panic inside fn. There is no timeout on a held lock: a stalled fn
// blocks all further operations on that account until it returns.
func (m *AccountMutex) WithLock(ctx context.Context, addr types.Address, fn func() error) error {
	l := m.acquireEntry(addr)

	select {
	case <-l.ch:
	case <-ctx.Done():
		m.releaseEntry(addr, l)
		return ctx.Err()
	}

	defer func() {
		l.ch <- struct{}{}
		m.releaseEntry(addr, l)
	}()
	return fn()
}

func (m *AccountMutex) acquireEntry(addr types.Address) *accountLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[addr]
	if !ok {
		l = &accountLock{ch: make(chan struct{}, 1)}
		l.ch <- struct{}{} // Start unlocked.
		m.locks[addr] = l
	}
	l.refs++
	return l
}

func (m *AccountMutex) releaseEntry(addr types.Address, l *accountLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, addr)
	}
}
