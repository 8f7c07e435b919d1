// Package viewport tracks the content-box size of a gallery container.
package viewport

import (
	"math"
	"sync"
)

// Size is a content-box size in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) normalized() Size {
	if !(s.Width > 0) || math.IsInf(s.Width, 0) {
		s.Width = 0
	}
	if !(s.Height > 0) || math.IsInf(s.Height, 0) {
		s.Height = 0
	}
	return s
}

// Source is a container whose size changes over time.
type Source interface {
	// Size returns the current measured size.
	Size() Size
	// Subscribe registers for size notifications. Calling cancel stops
	// delivery and releases the channel.
	Subscribe() (events <-chan Size, cancel func())
}

// Host is a Source fed by explicit Resize calls, e.g. from a client
// reporting its container size over HTTP. Notifications coalesce: a slow
// subscriber only ever sees the most recent size.
type Host struct {
	mu   sync.Mutex
	size Size
	subs map[chan Size]struct{}
}

// NewHost creates a Host with an initial size.
func NewHost(initial Size) *Host {
	return &Host{
		size: initial.normalized(),
		subs: make(map[chan Size]struct{}),
	}
}

// Size implements Source.
func (h *Host) Size() Size {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Resize records a new size and notifies subscribers.
func (h *Host) Resize(s Size) {
	s = s.normalized()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.size = s
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Subscribe implements Source.
func (h *Host) Subscribe() (<-chan Size, func()) {
	ch := make(chan Size, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}
