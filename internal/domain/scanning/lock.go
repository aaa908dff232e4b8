package scanning

import (
	"context"
	"strings"
	"sync"
)

// EndpointLock grants exclusive use of a camera endpoint.
// TryLock never waits: it returns ErrEndpointBusy when another acquisition holds the endpoint.
type EndpointLock interface {
	TryLock(ctx context.Context, endpoint string) (release func(), err error)
}

// LocalEndpointLock serialises endpoints within one process
type LocalEndpointLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalEndpointLock creates an in-process endpoint lock
func NewLocalEndpointLock() *LocalEndpointLock {
	return &LocalEndpointLock{
		held: make(map[string]struct{}),
	}
}

// TryLock acquires the endpoint or returns ErrEndpointBusy
func (l *LocalEndpointLock) TryLock(_ context.Context, endpoint string) (func(), error) {
	key := NormalizeEndpoint(endpoint)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, ErrEndpointBusy
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether the endpoint is currently locked
func (l *LocalEndpointLock) Held(endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[NormalizeEndpoint(endpoint)]
	return ok
}

// NormalizeEndpoint returns the key used to identify an endpoint
func NormalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

var _ EndpointLock = (*LocalEndpointLock)(nil)
