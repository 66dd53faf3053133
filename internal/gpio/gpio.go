// Package gpio provides digital input and output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one read of every input line, already in logical form
// (true = pressed / motion present).
type Sample struct {
	Motion      bool
	SwitchLED1  bool
	SwitchLED2  bool
	SwitchMotor bool
}

// Inputs reads the switch and PIR lines.
type Inputs interface {
	// Read returns the logical state of every input line.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the light channels and the motor direction lines.
type Outputs interface {
	// SetLight sets one LED channel (1 or 2).
	SetLight(channel int, on bool) error

	// SetMotorLines sets the two direction lines of the motor driver.
	// Callers must never request both asserted.
	SetMotorLines(forward, reverse bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pins holds BCM line offsets.
type Pins struct {
	Chip         string
	Motion       int
	SwitchLED1   int
	SwitchLED2   int
	SwitchMotor  int
	LED1         int
	LED2         int
	MotorForward int
	MotorReverse int
}

// DefaultPins matches the reference wiring of the node.
var DefaultPins = Pins{
	Chip:         "gpiochip0",
	Motion:       17,
	SwitchLED1:   5,
	SwitchLED2:   6,
	SwitchMotor:  13,
	LED1:         22,
	LED2:         27,
	MotorForward: 23,
	MotorReverse: 24,
}
