package logic

import "time"

// SystemState is everything the control loop owns. It is only touched from
// the loop goroutine; other goroutines see it through status snapshots.
type SystemState struct {
	Actuators map[Actuator]*ActuatorState
	Readings  map[SensorKind]SensorReading
	Motion    bool

	outbox []NotificationEvent
}

// NewSystemState creates a state with every actuator in Auto mode, off, and
// automatic control enabled.
func NewSystemState(motorSpeed int, motorDir Direction) *SystemState {
	s := &SystemState{
		Actuators: make(map[Actuator]*ActuatorState, len(Actuators)),
		Readings:  make(map[SensorKind]SensorReading),
	}
	for _, a := range Actuators {
		s.Actuators[a] = &ActuatorState{Mode: ModeAuto, AutoEnabled: true}
	}
	s.Actuators[ActuatorMotor].Speed = motorSpeed
	s.Actuators[ActuatorMotor].Direction = motorDir
	return s
}

// Actuator returns the mutable state of a.
func (s *SystemState) Actuator(a Actuator) *ActuatorState {
	return s.Actuators[a]
}

// Record replaces the last reading of its kind.
func (s *SystemState) Record(r SensorReading) {
	s.Readings[r.Kind] = r
}

// Reading returns the last good reading of kind.
func (s *SystemState) Reading(kind SensorKind) (SensorReading, bool) {
	r, ok := s.Readings[kind]
	return r, ok && r.Valid()
}

// Notify queues a notification for the rate limiter.
func (s *SystemState) Notify(kind NotificationKind, actor, message string, now time.Time, detail map[string]any) {
	s.outbox = append(s.outbox, NotificationEvent{
		Timestamp: now,
		Kind:      kind,
		Actor:     actor,
		Message:   message,
		Detail:    detail,
	})
}

// DrainOutbox returns and clears the queued notifications in creation order.
func (s *SystemState) DrainOutbox() []NotificationEvent {
	if len(s.outbox) == 0 {
		return nil
	}
	out := s.outbox
	s.outbox = nil
	return out
}

// Copy returns a deep copy of the actuator states for publishing.
func (s *SystemState) Copy() map[Actuator]ActuatorState {
	out := make(map[Actuator]ActuatorState, len(s.Actuators))
	for a, st := range s.Actuators {
		out[a] = *st
	}
	return out
}
