package logic

import "time"

// Debouncer turns a noisy boolean signal into a stable logical state.
// The stable state only changes after the raw value has held constant for at
// least the stability window; every raw change restarts the timer.
type Debouncer struct {
	window time.Duration

	raw          bool
	stable       bool
	pendingSince time.Time
	pending      bool // raw differs from stable and is waiting out the window
	baselined    bool
	seen         bool
}

// NewDebouncer creates a debouncer with the given stability window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Update feeds a raw sample and returns the stable state plus whether this
// sample committed a transition. The first settled value establishes the
// baseline and is not reported as a transition.
func (d *Debouncer) Update(raw bool, now time.Time) (stable bool, changed bool) {
	// First sample ever - start observing
	if !d.seen {
		d.seen = true
		d.raw = raw
		d.pendingSince = now
		return d.stable, false
	}

	if raw != d.raw {
		d.raw = raw
		d.pendingSince = now
		d.pending = !d.baselined || raw != d.stable
		return d.stable, false
	}

	if !d.baselined {
		if now.Sub(d.pendingSince) >= d.window {
			d.stable = raw
			d.baselined = true
			d.pending = false
		}
		return d.stable, false
	}

	if !d.pending || raw == d.stable {
		d.pending = false
		return d.stable, false
	}

	// Same pending value, check the window
	if now.Sub(d.pendingSince) >= d.window {
		d.stable = raw
		d.pending = false
		return d.stable, true
	}

	return d.stable, false
}

// Stable returns the current debounced state.
func (d *Debouncer) Stable() bool {
	return d.stable
}

// IsBaselined returns whether the first stable value has been established.
func (d *Debouncer) IsBaselined() bool {
	return d.baselined
}

// LastChange returns when the raw value last changed.
func (d *Debouncer) LastChange() time.Time {
	return d.pendingSince
}
