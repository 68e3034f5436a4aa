package core

import (
	"fmt"
	"sync"

	"pkt.systems/tabtidy/schema"
)

// leases tracks windows with an operation in flight.
type leases struct {
	mu   sync.Mutex
	held map[schema.WindowID]struct{}
}

func newLeases() *leases {
	return &leases{held: make(map[schema.WindowID]struct{})}
}

// acquire takes the lease for window or fails with schema.ErrWindowBusy.
// A nil receiver grants every request.
func (l *leases) acquire(window schema.WindowID) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[window]; ok {
		return nil, fmt.Errorf("%w: window %d", schema.ErrWindowBusy, window)
	}
	l.held[window] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, window)
			l.mu.Unlock()
		})
	}, nil
}

func (l *leases) busy(window schema.WindowID) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[window]
	return ok
}
