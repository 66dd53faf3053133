package logic

// Arbitration rules between the physical switch, the dashboard and the
// automatic policy. Physical switches are sticky overrides; dashboard commands
// are only honored while the actuator is in Auto mode; the policy engine never
// touches Mode.

// SwitchPress handles a debounced switch edge. Entering Manual toggles the
// output; leaving Manual hands control back to the policy engine without
// changing the output.
func (s *ActuatorState) SwitchPress() Mode {
	if s.Mode == ModeManual {
		s.Mode = ModeAuto
		return s.Mode
	}
	s.Mode = ModeManual
	s.DesiredOn = !s.DesiredOn
	return s.Mode
}

// ApplyRemote applies a dashboard on/off command. Manual always wins: the
// command is ignored while Mode is Manual. Returns whether the output changed.
func (s *ActuatorState) ApplyRemote(on bool) bool {
	if s.Mode == ModeManual || s.DesiredOn == on {
		return false
	}
	s.DesiredOn = on
	return true
}

// ClearManual returns the actuator to Auto. Returns false if it was not Manual.
func (s *ActuatorState) ClearManual() bool {
	if s.Mode != ModeManual {
		return false
	}
	s.Mode = ModeAuto
	return true
}

// ApplyAuto applies a policy decision. It is a no-op unless the actuator is in
// Auto mode with automatic control enabled. Returns whether the output changed.
func (s *ActuatorState) ApplyAuto(on bool) bool {
	if !s.Automatic() || s.DesiredOn == on {
		return false
	}
	s.DesiredOn = on
	return true
}

// Automatic reports whether the policy engine may drive this actuator.
func (s *ActuatorState) Automatic() bool {
	return s.Mode == ModeAuto && s.AutoEnabled
}

// SetSpeed validates and stores a motor speed.
func (s *ActuatorState) SetSpeed(speed int) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	s.Speed = speed
	return nil
}
