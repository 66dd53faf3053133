package logic

import "time"

// Verdict is the outcome of submitting a notification to the limiter.
type Verdict string

const (
	Emitted    Verdict = "EMITTED"
	Suppressed Verdict = "SUPPRESSED"
)

// Suppression reasons, exposed for metrics and debug traces.
const (
	ReasonWindow  = "window"
	ReasonSpacing = "spacing"
)

// RateLimitWindow counts emissions within one fixed window.
type RateLimitWindow struct {
	WindowStart   time.Time
	CountInWindow int
	Capacity      int
}

// RateLimiter caps notifications per fixed window and, for configured kinds,
// enforces a minimum spacing since the last emitted event of the same kind.
// An event must pass both checks to be emitted. Suppressed events are dropped
// and never retried.
type RateLimiter struct {
	window      time.Duration
	state       RateLimitWindow
	spacing     map[NotificationKind]time.Duration
	lastEmitted map[NotificationKind]time.Time
	counts      LimiterCounts
}

// LimiterCounts tracks limiter outcomes since startup.
type LimiterCounts struct {
	Emitted           int
	SuppressedWindow  int
	SuppressedSpacing int
}

// NewRateLimiter creates a limiter allowing capacity events per window.
func NewRateLimiter(window time.Duration, capacity int) *RateLimiter {
	return &RateLimiter{
		window:      window,
		state:       RateLimitWindow{Capacity: capacity},
		spacing:     make(map[NotificationKind]time.Duration),
		lastEmitted: make(map[NotificationKind]time.Time),
	}
}

// SetMinSpacing sets the minimum time between two emitted events of kind.
func (r *RateLimiter) SetMinSpacing(kind NotificationKind, d time.Duration) {
	r.spacing[kind] = d
}

// Submit decides whether event may be emitted at now. The second return value
// names the rule that suppressed it.
func (r *RateLimiter) Submit(event NotificationEvent, now time.Time) (Verdict, string) {
	if r.state.WindowStart.IsZero() || now.Sub(r.state.WindowStart) >= r.window {
		r.state.WindowStart = now
		r.state.CountInWindow = 0
	}

	// Both rules are evaluated on every submission
	spacingOK := true
	if gap, ok := r.spacing[event.Kind]; ok {
		if last, seen := r.lastEmitted[event.Kind]; seen && now.Sub(last) < gap {
			spacingOK = false
		}
	}
	windowOK := r.state.CountInWindow < r.state.Capacity

	if !spacingOK {
		r.counts.SuppressedSpacing++
		return Suppressed, ReasonSpacing
	}
	if !windowOK {
		r.counts.SuppressedWindow++
		return Suppressed, ReasonWindow
	}

	r.state.CountInWindow++
	r.lastEmitted[event.Kind] = now
	r.counts.Emitted++
	return Emitted, ""
}

// Window returns a copy of the current window state.
func (r *RateLimiter) Window() RateLimitWindow {
	return r.state
}

// Counts returns a copy of the outcome counters.
func (r *RateLimiter) Counts() LimiterCounts {
	return r.counts
}
