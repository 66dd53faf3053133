package logic

import "time"

// MotionLight keeps an output on while motion is present and for Timeout
// after the last motion was seen. It is fed the debounced motion state, not
// the raw PIR signal.
type MotionLight struct {
	Timeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewMotionLight creates a motion light with the given hold time.
func NewMotionLight(timeout time.Duration) *MotionLight {
	return &MotionLight{Timeout: timeout}
}

// Evaluate returns the desired output when it changes; ok is false otherwise.
// Continuous motion keeps refreshing the hold timer.
func (m *MotionLight) Evaluate(motion bool, now time.Time) (on bool, ok bool) {
	if motion {
		m.lastMotion = now
		if !m.active {
			m.active = true
			return true, true
		}
		return false, false
	}

	if m.active && now.Sub(m.lastMotion) >= m.Timeout {
		m.active = false
		return false, true
	}
	return false, false
}

// Resync aligns the hold state with the actual output.
func (m *MotionLight) Resync(on bool, now time.Time) {
	m.active = on
	if on {
		m.lastMotion = now
	}
}
