// Package sensor samples the analog/environmental sensors and rejects
// readings that are unavailable or out of range.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sweeney/homenode/internal/logic"
)

// ErrOutOfRange marks a reading that was captured but is not plausible.
var ErrOutOfRange = errors.New("reading out of range")

// Source reads raw sensor values.
type Source interface {
	// ReadLux returns the ambient light level in lux.
	ReadLux() (float64, error)

	// ReadClimate returns temperature in °C and relative humidity in %.
	// Either value may be NaN if that half of the sensor failed.
	ReadClimate() (temperature, humidity float64, err error)
}

// Range is an inclusive plausibility window.
type Range struct {
	Min, Max float64
}

// Ranges used to reject faulty readings.
var (
	LuxRange         = Range{Min: 0, Max: 200000}
	TemperatureRange = Range{Min: -40, Max: 85}
	HumidityRange    = Range{Min: 0, Max: 100}
)

// Fault describes a rejected reading.
type Fault struct {
	Kind logic.SensorKind
	Err  error
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// Sampler turns raw source values into validated readings.
type Sampler struct {
	src Source
}

// NewSampler creates a sampler over src.
func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// Light samples the light sensor.
func (s *Sampler) Light(now time.Time) (logic.SensorReading, error) {
	lux, err := s.src.ReadLux()
	if err != nil {
		return logic.SensorReading{}, Fault{Kind: logic.SensorLight, Err: err}
	}
	return validate(logic.SensorLight, lux, LuxRange, now)
}

// Climate samples temperature and humidity. Valid readings are returned even
// when the other half faulted; faults are joined into err.
func (s *Sampler) Climate(now time.Time) ([]logic.SensorReading, error) {
	temp, hum, err := s.src.ReadClimate()
	if err != nil {
		return nil, errors.Join(
			Fault{Kind: logic.SensorTemperature, Err: err},
			Fault{Kind: logic.SensorHumidity, Err: err},
		)
	}

	var readings []logic.SensorReading
	var errs []error
	if r, err := validate(logic.SensorTemperature, temp, TemperatureRange, now); err != nil {
		errs = append(errs, err)
	} else {
		readings = append(readings, r)
	}
	if r, err := validate(logic.SensorHumidity, hum, HumidityRange, now); err != nil {
		errs = append(errs, err)
	} else {
		readings = append(readings, r)
	}
	return readings, errors.Join(errs...)
}

func validate(kind logic.SensorKind, v float64, rng Range, now time.Time) (logic.SensorReading, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < rng.Min || v > rng.Max {
		return logic.SensorReading{}, Fault{Kind: kind, Err: fmt.Errorf("%w: %v", ErrOutOfRange, v)}
	}
	return logic.SensorReading{Kind: kind, Value: v, Timestamp: now}, nil
}

// Faults returns every Fault contained in err, including joined errors.
func Faults(err error) []Fault {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Fault
		for _, e := range joined.Unwrap() {
			out = append(out, Faults(e)...)
		}
		return out
	}
	var f Fault
	if errors.As(err, &f) {
		return []Fault{f}
	}
	return nil
}
