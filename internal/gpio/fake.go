package gpio

import (
	"errors"
	"fmt"
)

// FakeInputs is a test double that returns scripted input samples.
type FakeInputs struct {
	// Samples contains scripted samples to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeInputs creates a FakeInputs with the given samples.
func NewFakeInputs(samples []Sample) *FakeInputs {
	return &FakeInputs{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInputs) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Set replaces the script with a single sample returned until changed.
func (f *FakeInputs) Set(s Sample) {
	f.Samples = []Sample{s}
	f.index = 0
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeInputs) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeOutputs records output writes for test assertions.
type FakeOutputs struct {
	Lights  map[int]bool
	Forward bool
	Reverse bool

	// Writes counts every successful call.
	Writes int

	// BothAsserted is set if a caller ever requested both motor lines high.
	BothAsserted bool

	// WriteError, if set, will be returned by every setter.
	WriteError error

	Closed bool
}

// NewFakeOutputs creates a FakeOutputs with every line low.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{Lights: make(map[int]bool)}
}

// SetLight records a light write.
func (f *FakeOutputs) SetLight(channel int, on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if channel != 1 && channel != 2 {
		return fmt.Errorf("unknown light channel %d", channel)
	}
	f.Lights[channel] = on
	f.Writes++
	return nil
}

// SetMotorLines records a direction write.
func (f *FakeOutputs) SetMotorLines(forward, reverse bool) error {
	if forward && reverse {
		f.BothAsserted = true
		return errors.New("refusing to assert both motor direction lines")
	}
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Forward = forward
	f.Reverse = reverse
	f.Writes++
	return nil
}

// Close marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.Closed = true
	return nil
}
