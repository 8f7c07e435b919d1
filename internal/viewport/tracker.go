package viewport

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// Subscription is a live observation of a Source started by Observe.
type Subscription struct {
	width atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Observe watches src and calls onWidth with the initial measured width
// right away, then with every distinct width it reports. Observation ends
// when ctx is cancelled or Close is called; onWidth is never invoked after
// Close returns.
func Observe(ctx context.Context, src Source, onWidth func(float64)) *Subscription {
	s := &Subscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	events, cancel := src.Subscribe()

	last := src.Size().Width
	s.width.Store(math.Float64bits(last))

	go func() {
		defer close(s.done)
		defer cancel()

		onWidth(last)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case size := <-events:
				if size.Width == last {
					continue
				}
				last = size.Width
				s.width.Store(math.Float64bits(last))
				onWidth(last)
			}
		}
	}()
	return s
}

// Width returns the most recently observed width.
func (s *Subscription) Width() float64 {
	return math.Float64frombits(s.width.Load())
}

// Close stops the observation and waits for it to finish.
func (s *Subscription) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Done is closed once the observation has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
