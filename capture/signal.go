package capture

import (
	"context"
	"sync"
	"sync/atomic"
)

// StopSignal is a write-once flag. Set may be called any number of times
// from any goroutine; only the first call has an effect.
type StopSignal struct {
	once sync.Once
	set  atomic.Bool
	done chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Set raises the signal and reports whether this call raised it.
func (s *StopSignal) Set() bool {
	fired := false
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
		fired = true
	})
	return fired
}

func (s *StopSignal) IsSet() bool { return s.set.Load() }

// Done is closed when the signal is set.
func (s *StopSignal) Done() <-chan struct{} { return s.done }

// StopSource blocks until a stop is requested. It returns nil for a stop
// request and a non-nil error (usually ctx.Err()) otherwise.
type StopSource interface {
	WaitStop(ctx context.Context) error
}

type StopSourceFunc func(ctx context.Context) error

func (f StopSourceFunc) WaitStop(ctx context.Context) error { return f(ctx) }

// ChanStopSource requests a stop when the channel receives or is closed.
func ChanStopSource(ch <-chan struct{}) StopSource {
	return StopSourceFunc(func(ctx context.Context) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
