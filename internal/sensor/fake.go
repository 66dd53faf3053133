package sensor

// FakeSource is a test double returning configurable values.
type FakeSource struct {
	Lux         float64
	Temperature float64
	Humidity    float64

	// LuxError and ClimateError, if set, are returned by the readers.
	LuxError     error
	ClimateError error

	LuxReads     int
	ClimateReads int
}

// ReadLux returns Lux.
func (f *FakeSource) ReadLux() (float64, error) {
	f.LuxReads++
	if f.LuxError != nil {
		return 0, f.LuxError
	}
	return f.Lux, nil
}

// ReadClimate returns Temperature and Humidity.
func (f *FakeSource) ReadClimate() (float64, float64, error) {
	f.ClimateReads++
	if f.ClimateError != nil {
		return 0, 0, f.ClimateError
	}
	return f.Temperature, f.Humidity, nil
}
