package logic

import (
	"testing"
	"time"
)

func motionEvent(at time.Time) NotificationEvent {
	return NotificationEvent{Timestamp: at, Kind: NotifyMotion, Actor: "pir", Message: "motion detected"}
}

func TestRateLimiterWindowCap(t *testing.T) {
	r := NewRateLimiter(time.Minute, 10)
	r.SetMinSpacing(NotifyMotion, 2*time.Second)

	emitted := 0
	for i := 0; i < 11; i++ {
		at := t0.Add(time.Duration(i) * 3 * time.Second)
		v, reason := r.Submit(motionEvent(at), at)
		if v == Emitted {
			emitted++
		}
		if i == 10 && (v != Suppressed || reason != ReasonWindow) {
			t.Errorf("11th event: got %s (%s), want SUPPRESSED (window)", v, reason)
		}
	}
	if emitted != 10 {
		t.Errorf("expected 10 emitted, got %d", emitted)
	}
}

func TestRateLimiterMotionSpacing(t *testing.T) {
	r := NewRateLimiter(time.Minute, 10)
	r.SetMinSpacing(NotifyMotion, 2*time.Second)

	if v, _ := r.Submit(motionEvent(t0), t0); v != Emitted {
		t.Fatalf("first event: got %s", v)
	}
	at := t0.Add(500 * time.Millisecond)
	v, reason := r.Submit(motionEvent(at), at)
	if v != Suppressed || reason != ReasonSpacing {
		t.Fatalf("second event: got %s (%s), want SUPPRESSED (spacing)", v, reason)
	}

	// Spacing is measured from the last emitted event, not the suppressed one
	at = t0.Add(2 * time.Second)
	if v, _ := r.Submit(motionEvent(at), at); v != Emitted {
		t.Errorf("event at 2s: got %s, want EMITTED", v)
	}
}

func TestRateLimiterSpacingOnlyForConfiguredKinds(t *testing.T) {
	r := NewRateLimiter(time.Minute, 10)
	r.SetMinSpacing(NotifyMotion, 2*time.Second)

	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * 10 * time.Millisecond)
		ev := NotificationEvent{Timestamp: at, Kind: NotifySwitch}
		if v, _ := r.Submit(ev, at); v != Emitted {
			t.Errorf("switch event %d: got %s", i, v)
		}
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	r := NewRateLimiter(time.Minute, 2)

	for i := 0; i < 3; i++ {
		r.Submit(NotificationEvent{Kind: NotifyAuto}, t0)
	}
	if w := r.Window(); w.CountInWindow != 2 {
		t.Fatalf("count in window: got %d, want 2", w.CountInWindow)
	}

	at := t0.Add(time.Minute)
	if v, _ := r.Submit(NotificationEvent{Kind: NotifyAuto}, at); v != Emitted {
		t.Fatalf("after window elapsed: got %s", v)
	}
	w := r.Window()
	if !w.WindowStart.Equal(at) || w.CountInWindow != 1 {
		t.Errorf("window not reset: %+v", w)
	}
}

func TestRateLimiterCounts(t *testing.T) {
	r := NewRateLimiter(time.Minute, 1)
	r.SetMinSpacing(NotifyMotion, 2*time.Second)

	r.Submit(motionEvent(t0), t0)
	r.Submit(motionEvent(t0.Add(time.Second)), t0.Add(time.Second))
	r.Submit(NotificationEvent{Kind: NotifySwitch}, t0.Add(3*time.Second))

	c := r.Counts()
	if c.Emitted != 1 || c.SuppressedSpacing != 1 || c.SuppressedWindow != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}
