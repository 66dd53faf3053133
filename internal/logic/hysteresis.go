package logic

// Trigger selects which side of the threshold turns an output on.
type Trigger int

const (
	// TriggerBelow turns on when the reading drops below the threshold (light).
	TriggerBelow Trigger = iota
	// TriggerAbove turns on when the reading reaches the threshold (temperature).
	TriggerAbove
)

// Hysteresis is a trigger/release band around a single threshold.
// The release point sits Margin away from OnThreshold on the far side, so a
// reading hovering near the threshold cannot make the output chatter.
type Hysteresis struct {
	OnThreshold float64
	Margin      float64
	Trigger     Trigger
	Triggered   bool
}

// NewLightHysteresis turns on below onThreshold and off above onThreshold+margin.
func NewLightHysteresis(onThreshold, margin float64) *Hysteresis {
	return &Hysteresis{OnThreshold: onThreshold, Margin: margin, Trigger: TriggerBelow}
}

// NewTemperatureHysteresis turns on at or above onThreshold and off below
// onThreshold-margin.
func NewTemperatureHysteresis(onThreshold, margin float64) *Hysteresis {
	return &Hysteresis{OnThreshold: onThreshold, Margin: margin, Trigger: TriggerAbove}
}

// OffThreshold returns the release point of the band.
func (h *Hysteresis) OffThreshold() float64 {
	if h.Trigger == TriggerBelow {
		return h.OnThreshold + h.Margin
	}
	return h.OnThreshold - h.Margin
}

// Evaluate feeds a reading and returns the desired output when the reading
// crosses the trigger or release point. ok is false when nothing changes.
func (h *Hysteresis) Evaluate(value float64) (on bool, ok bool) {
	switch h.Trigger {
	case TriggerBelow:
		if !h.Triggered && value < h.OnThreshold {
			h.Triggered = true
			return true, true
		}
		if h.Triggered && value > h.OnThreshold+h.Margin {
			h.Triggered = false
			return false, true
		}
	case TriggerAbove:
		if !h.Triggered && value >= h.OnThreshold {
			h.Triggered = true
			return true, true
		}
		if h.Triggered && value < h.OnThreshold-h.Margin {
			h.Triggered = false
			return false, true
		}
	}
	return false, false
}

// Resync aligns the band with the actual output, used when an actuator
// returns to automatic control after a manual period.
func (h *Hysteresis) Resync(on bool) {
	h.Triggered = on
}
