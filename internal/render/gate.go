package render

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrGateClosed is returned by Acquire after Close.
var ErrGateClosed = errors.New("render gate closed")

// Gate bounds the number of engine processes alive at the same time.
type Gate struct {
	sem chan struct{}

	mu     sync.RWMutex
	closed bool
}

// GateStats is a point-in-time view of the gate.
type GateStats struct {
	Enabled  bool `json:"enabled"`
	Capacity int  `json:"capacity"`
	Idle     int  `json:"idle"`
	InUse    int  `json:"in_use"`
}

// NewGate creates a gate with n slots. n <= 0 picks a size from GOMAXPROCS.
func NewGate(n int) *Gate {
	n = ResolveConcurrency(n)
	g := &Gate{sem: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		g.sem <- struct{}{}
	}
	return g
}

// ResolveConcurrency returns n when positive, otherwise half of GOMAXPROCS
// clamped to [1, 8]. Every slot is a full browser process.
func ResolveConcurrency(n int) int {
	if n > 0 {
		return n
	}
	n = runtime.GOMAXPROCS(0) / 2
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

// Acquire blocks until a slot is free, ctx is done, or the gate is closed.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return ErrGateClosed
	}

	select {
	case <-g.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (g *Gate) Release() {
	select {
	case g.sem <- struct{}{}:
	default:
		// more releases than acquires; ignore
	}
}

// Close stops new acquisitions. In-flight holders still Release normally.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *Gate) Stats() GateStats {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()

	capacity := cap(g.sem)
	idle := len(g.sem)
	return GateStats{
		Enabled:  !closed,
		Capacity: capacity,
		Idle:     idle,
		InUse:    capacity - idle,
	}
}
