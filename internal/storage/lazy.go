package storage

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

var ErrClosed = errors.New("connection closed")

// DialFunc establishes the underlying connection.
type DialFunc[T any] func(ctx context.Context) (T, error)

// Lazy holds a connection that is established on first use and reused
// afterwards. Concurrent first callers share a single dial. A failed dial is
// not remembered, so the next caller tries again.
type Lazy[T any] struct {
	dial  DialFunc[T]
	close func(T) error

	group singleflight.Group

	mu     sync.RWMutex
	val    T
	ready  bool
	closed bool
	dials  int
}

// NewLazy returns a Lazy that uses dial to connect and closeFn (optional) to
// release the connection.
func NewLazy[T any](dial DialFunc[T], closeFn func(T) error) *Lazy[T] {
	return &Lazy[T]{dial: dial, close: closeFn}
}

// Get returns the connection, dialing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.ready {
		v := l.val
		l.mu.RUnlock()
		return v, nil
	}
	closed := l.closed
	l.mu.RUnlock()

	var zero T
	if closed {
		return zero, ErrClosed
	}

	v, err, _ := l.group.Do("dial", func() (any, error) {
		l.mu.RLock()
		if l.ready {
			v := l.val
			l.mu.RUnlock()
			return v, nil
		}
		l.mu.RUnlock()

		// The dial outlives any single caller; a cancelled request must
		// not abort the connection other callers are waiting on.
		v, err := l.dial(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		l.dials++
		if l.closed {
			if l.close != nil {
				_ = l.close(v)
			}
			return nil, ErrClosed
		}
		l.val = v
		l.ready = true
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Ready reports whether a connection has been established.
func (l *Lazy[T]) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Dials returns how many connections have been established.
func (l *Lazy[T]) Dials() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dials
}

// Close releases the connection if one was established. Later calls to Get
// fail with ErrClosed.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if !l.ready {
		return nil
	}
	l.ready = false
	var zero T
	v := l.val
	l.val = zero
	if l.close != nil {
		return l.close(v)
	}
	return nil
}
