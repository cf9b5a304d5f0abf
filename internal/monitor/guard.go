package monitor

import "sync/atomic"

// Guard admits at most one start sequence at a time. Monitors sharing a
// Guard never run overlapping starts.
type Guard struct {
	busy atomic.Bool
}

func NewGuard() *Guard { return &Guard{} }

// TryAcquire claims the guard; false means a start is already in flight.
func (g *Guard) TryAcquire() bool { return g.busy.CompareAndSwap(false, true) }

func (g *Guard) Release() { g.busy.Store(false) }

// Busy reports whether a start is in flight.
func (g *Guard) Busy() bool { return g.busy.Load() }

var processGuard = NewGuard()

// ProcessGuard returns the guard shared by the whole process.
func ProcessGuard() *Guard { return processGuard }
