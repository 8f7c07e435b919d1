package viewport

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	widths []float64
}

func (r *recorder) add(w float64) {
	r.mu.Lock()
	r.widths = append(r.widths, w)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.widths...)
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error(msg)
}

func TestObserve_EmitsInitialWidth(t *testing.T) {
	host := NewHost(Size{Width: 800, Height: 600})
	var rec recorder
	sub := Observe(context.Background(), host, rec.add)
	defer sub.Close()

	eventually(t, time.Second, func() bool {
		w := rec.snapshot()
		return len(w) == 1 && w[0] == 800
	}, "initial width not emitted")
	if sub.Width() != 800 {
		t.Errorf("Width = %v, want 800", sub.Width())
	}
}

func TestObserve_DistinctChangesOnly(t *testing.T) {
	host := NewHost(Size{})
	var rec recorder
	sub := Observe(context.Background(), host, rec.add)
	defer sub.Close()

	eventually(t, time.Second, func() bool { return len(rec.snapshot()) == 1 }, "no initial emission")

	host.Resize(Size{Width: 1024, Height: 700})
	eventually(t, time.Second, func() bool { return sub.Width() == 1024 }, "resize not observed")

	// Height-only change does not re-emit.
	host.Resize(Size{Width: 1024, Height: 900})
	host.Resize(Size{Width: 640, Height: 900})
	eventually(t, time.Second, func() bool { return sub.Width() == 640 }, "second resize not observed")

	got := rec.snapshot()
	want := []float64{0, 1024, 640}
	if len(got) != len(want) {
		t.Fatalf("widths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("widths = %v, want %v", got, want)
			break
		}
	}
}

func TestObserve_NoEmissionAfterClose(t *testing.T) {
	host := NewHost(Size{Width: 300})
	var rec recorder
	sub := Observe(context.Background(), host, rec.add)
	eventually(t, time.Second, func() bool { return len(rec.snapshot()) == 1 }, "no initial emission")

	sub.Close()
	host.Resize(Size{Width: 900})
	time.Sleep(20 * time.Millisecond)

	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("emissions after close: %v", rec.snapshot())
	}
	host.mu.Lock()
	subs := len(host.subs)
	host.mu.Unlock()
	if subs != 0 {
		t.Errorf("host still has %d subscribers", subs)
	}
}

func TestObserve_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := Observe(ctx, NewHost(Size{Width: 10}), func(float64) {})
	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("observation did not stop on cancel")
	}
	sub.Close()
}

func TestHost_NormalizesNegative(t *testing.T) {
	h := NewHost(Size{Width: -20, Height: 5})
	if s := h.Size(); s.Width != 0 || s.Height != 5 {
		t.Errorf("Size = %+v", s)
	}
}
