// Package actuator translates desired actuator state into physical output
// writes: binary light channels and a clamped, direction-interlocked motor.
package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
)

// Drive sets the motor drive magnitude in [0, fullScale].
type Drive interface {
	SetDrive(level int) error
}

// MotorCommand is the physical form of the motor state.
// Forward and Reverse are never both true.
type MotorCommand struct {
	Drive   int
	Forward bool
	Reverse bool
}

// Off reports whether the command leaves the motor unpowered.
func (c MotorCommand) Off() bool {
	return c.Drive == 0 && !c.Forward && !c.Reverse
}

// Limits describes the drive scale and its safety ceiling.
type Limits struct {
	FullScale int // theoretical maximum drive level, e.g. 255
	Ceiling   int // hard limit applied regardless of requested speed
}

// NewLimits derives the ceiling as maxPercent of fullScale.
func NewLimits(fullScale, maxPercent int) Limits {
	return Limits{FullScale: fullScale, Ceiling: fullScale * maxPercent / 100}
}

// MotorCommandFor maps a logical motor state to a physical command.
// Speed is scaled to the full drive range and then clamped to the ceiling.
func MotorCommandFor(st logic.ActuatorState, lim Limits) MotorCommand {
	if !st.DesiredOn || st.Speed <= 0 {
		return MotorCommand{}
	}
	speed := st.Speed
	if speed > 100 {
		speed = 100
	}
	level := speed * lim.FullScale / 100
	if level > lim.Ceiling {
		level = lim.Ceiling
	}
	if level <= 0 {
		return MotorCommand{}
	}
	cmd := MotorCommand{Drive: level}
	if st.Direction == logic.DirectionReverse {
		cmd.Reverse = true
	} else {
		cmd.Forward = true
	}
	return cmd
}

// lightChannels maps light actuators to output channels.
var lightChannels = map[logic.Actuator]int{
	logic.ActuatorLED1: 1,
	logic.ActuatorLED2: 2,
}

// Controller owns the physical outputs. All writes happen under one mutex so
// a motor stop can never interleave with another write.
type Controller struct {
	mu     sync.Mutex
	out    gpio.Outputs
	drive  Drive
	limits Limits

	lights    map[int]bool
	lightsOK  map[int]bool
	motor     MotorCommand
	motorOK   bool
	lastError error
}

// NewController creates a controller over the given outputs.
func NewController(out gpio.Outputs, drive Drive, limits Limits) *Controller {
	return &Controller{
		out:      out,
		drive:    drive,
		limits:   limits,
		lights:   make(map[int]bool),
		lightsOK: make(map[int]bool),
	}
}

// Apply writes every actuator whose physical form changed since the last
// successful write. Failed writes are retried on the next call.
func (c *Controller) Apply(states map[logic.Actuator]logic.ActuatorState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for a, ch := range lightChannels {
		st, ok := states[a]
		if !ok {
			continue
		}
		if err := c.applyLight(ch, st.DesiredOn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
		}
	}
	if st, ok := states[logic.ActuatorMotor]; ok {
		if err := c.applyMotor(MotorCommandFor(st, c.limits)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", logic.ActuatorMotor, err))
		}
	}
	c.lastError = errors.Join(errs...)
	return c.lastError
}

func (c *Controller) applyLight(ch int, on bool) error {
	if c.lightsOK[ch] && c.lights[ch] == on {
		return nil
	}
	c.lightsOK[ch] = false
	if err := c.out.SetLight(ch, on); err != nil {
		return err
	}
	c.lights[ch] = on
	c.lightsOK[ch] = true
	return nil
}

// applyMotor zeroes the drive before touching the direction lines, so a
// direction change never happens under load.
func (c *Controller) applyMotor(cmd MotorCommand) error {
	if cmd.Forward && cmd.Reverse {
		return errors.New("invalid motor command: both directions")
	}
	if c.motorOK && c.motor == cmd {
		return nil
	}
	c.motorOK = false

	if c.motor.Forward != cmd.Forward || c.motor.Reverse != cmd.Reverse || cmd.Off() {
		if err := c.drive.SetDrive(0); err != nil {
			return fmt.Errorf("zero drive: %w", err)
		}
		c.motor.Drive = 0
		if err := c.out.SetMotorLines(cmd.Forward, cmd.Reverse); err != nil {
			return fmt.Errorf("set direction: %w", err)
		}
		c.motor.Forward, c.motor.Reverse = cmd.Forward, cmd.Reverse
	}
	if err := c.drive.SetDrive(cmd.Drive); err != nil {
		return fmt.Errorf("set drive: %w", err)
	}
	c.motor = cmd
	c.motorOK = true
	return nil
}

// Stop turns every output off.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if err := c.applyMotor(MotorCommand{}); err != nil {
		errs = append(errs, err)
	}
	for _, ch := range lightChannels {
		if err := c.applyLight(ch, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Motor returns the last motor command written successfully.
func (c *Controller) Motor() MotorCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motor
}

// Limits returns the drive limits.
func (c *Controller) Limits() Limits {
	return c.limits
}
