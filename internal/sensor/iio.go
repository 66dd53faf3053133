package sensor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOSource reads sensors exposed by Linux Industrial I/O drivers
// (e.g. bh1750 for light, dht11 for temperature/humidity).
type IIOSource struct {
	LightDevice   string // e.g. /sys/bus/iio/devices/iio:device0
	ClimateDevice string // e.g. /sys/bus/iio/devices/iio:device1
}

// ReadLux reads in_illuminance_input, falling back to raw*scale.
func (s IIOSource) ReadLux() (float64, error) {
	if v, err := readFloat(filepath.Join(s.LightDevice, "in_illuminance_input")); err == nil {
		return v, nil
	}
	raw, err := readFloat(filepath.Join(s.LightDevice, "in_illuminance_raw"))
	if err != nil {
		return 0, fmt.Errorf("read illuminance: %w", err)
	}
	scale, err := readFloat(filepath.Join(s.LightDevice, "in_illuminance_scale"))
	if err != nil {
		scale = 1
	}
	return raw * scale, nil
}

// ReadClimate reads milli-degree temperature and milli-percent humidity.
// A half that cannot be read is reported as NaN so the other half survives.
func (s IIOSource) ReadClimate() (float64, float64, error) {
	temp, terr := readFloat(filepath.Join(s.ClimateDevice, "in_temp_input"))
	hum, herr := readFloat(filepath.Join(s.ClimateDevice, "in_humidityrelative_input"))
	if terr != nil && herr != nil {
		return 0, 0, fmt.Errorf("read climate: %w", terr)
	}
	t, h := math.NaN(), math.NaN()
	if terr == nil {
		t = temp / 1000
	}
	if herr == nil {
		h = hum / 1000
	}
	return t, h, nil
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}
