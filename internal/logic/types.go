// Package logic contains the pure control core of the home node: debouncing,
// hysteresis, manual/auto arbitration and notification rate limiting.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"time"
)

// State represents the logical state of a binary channel.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a boolean into a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Actuator identifies one of the driven outputs.
type Actuator string

const (
	ActuatorLED1  Actuator = "led1"
	ActuatorLED2  Actuator = "led2"
	ActuatorMotor Actuator = "motor"
)

// Actuators lists every actuator in a fixed order.
var Actuators = []Actuator{ActuatorLED1, ActuatorLED2, ActuatorMotor}

// Mode is the arbitration mode of an actuator.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// Direction is the motor rotation direction.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// ParseDirection validates a remote direction value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionForward, DirectionReverse:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Configuration errors. Rejected values leave local state unchanged.
var (
	ErrInvalidSpeed     = errors.New("speed out of range [0,100]")
	ErrInvalidDirection = errors.New("unknown direction")
)

// ValidateSpeed checks a requested motor speed percentage.
func ValidateSpeed(speed int) error {
	if speed < 0 || speed > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, speed)
	}
	return nil
}

// SensorKind identifies a sensor channel.
type SensorKind string

const (
	SensorMotion      SensorKind = "motion"
	SensorLight       SensorKind = "light"
	SensorTemperature SensorKind = "temperature"
	SensorHumidity    SensorKind = "humidity"
)

// SensorReading is a single captured sample. It is replaced wholesale on the
// next sample, never mutated.
type SensorReading struct {
	Kind      SensorKind
	Value     float64
	Timestamp time.Time
}

// Valid reports whether the reading has ever been captured.
func (r SensorReading) Valid() bool {
	return !r.Timestamp.IsZero()
}

// ActuatorState is the desired state of one actuator. Speed and Direction are
// only meaningful for the motor.
type ActuatorState struct {
	DesiredOn   bool
	Mode        Mode
	AutoEnabled bool
	Speed       int
	Direction   Direction
}

// Source records who changed an actuator.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceSwitch Source = "switch"
	SourceRemote Source = "remote"
)

// NotificationKind classifies an outbound notification.
type NotificationKind string

const (
	NotifyMotion NotificationKind = "motion"
	NotifySwitch NotificationKind = "switch"
	NotifyAuto   NotificationKind = "auto"
	NotifyRemote NotificationKind = "remote"
	NotifySystem NotificationKind = "system"
)

// NotificationEvent is a write-once description of something that happened.
type NotificationEvent struct {
	Timestamp time.Time
	Kind      NotificationKind
	Actor     string
	Message   string
	Detail    map[string]any
}
