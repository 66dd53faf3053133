// Package config loads the homenode YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
)

// Config represents the daemon configuration
type Config struct {
	GPIO          GPIOConfig          `yaml:"gpio"`
	Inputs        InputsConfig        `yaml:"inputs"`
	Light         LightConfig         `yaml:"light"`
	Climate       ClimateConfig       `yaml:"climate"`
	Motion        MotionConfig        `yaml:"motion"`
	Motor         MotorConfig         `yaml:"motor"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Datastore     DatastoreConfig     `yaml:"datastore"`
	HTTP          HTTPConfig          `yaml:"http"`
	Log           LogConfig           `yaml:"log"`
}

// GPIOConfig holds the character device and BCM line offsets
type GPIOConfig struct {
	Chip         string `yaml:"chip"`
	Motion       int    `yaml:"motion"`
	SwitchLED1   int    `yaml:"switch_led1"`
	SwitchLED2   int    `yaml:"switch_led2"`
	SwitchMotor  int    `yaml:"switch_motor"`
	LED1         int    `yaml:"led1"`
	LED2         int    `yaml:"led2"`
	MotorForward int    `yaml:"motor_forward"`
	MotorReverse int    `yaml:"motor_reverse"`
}

// Pins converts the offsets for the gpio package
func (c GPIOConfig) Pins() gpio.Pins {
	return gpio.Pins{
		Chip:         c.Chip,
		Motion:       c.Motion,
		SwitchLED1:   c.SwitchLED1,
		SwitchLED2:   c.SwitchLED2,
		SwitchMotor:  c.SwitchMotor,
		LED1:         c.LED1,
		LED2:         c.LED2,
		MotorForward: c.MotorForward,
		MotorReverse: c.MotorReverse,
	}
}

// InputsConfig contains digital input sampling settings
type InputsConfig struct {
	Poll            Duration `yaml:"poll"`             // Sampling interval of switches and PIR
	MotionStability Duration `yaml:"motion_stability"` // PIR must hold this long to count
	SwitchStability Duration `yaml:"switch_stability"` // Switch must hold this long to count
}

// LightConfig contains the ambient light sensor and led1 policy
type LightConfig struct {
	Device         string   `yaml:"device"` // IIO device directory
	SampleInterval Duration `yaml:"sample_interval"`
	OnThreshold    float64  `yaml:"on_threshold"` // led1 turns on below this lux
	Margin         float64  `yaml:"margin"`       // and off above on_threshold+margin
}

// ClimateConfig contains the temperature/humidity sensor and motor policy
type ClimateConfig struct {
	Device         string   `yaml:"device"` // IIO device directory
	SampleInterval Duration `yaml:"sample_interval"`
	OnThreshold    float64  `yaml:"on_threshold"` // motor turns on at this temperature
	Hysteresis     float64  `yaml:"hysteresis"`   // and off below on_threshold-hysteresis
}

// MotionConfig contains the led2 motion light settings
type MotionConfig struct {
	LEDTimeout Duration `yaml:"led_timeout"` // led2 stays on this long after the last motion
}

// MotorConfig contains motor drive settings
type MotorConfig struct {
	MaxDrivePercent  int      `yaml:"max_drive_percent"` // hard ceiling on the drive level
	FullScale        int      `yaml:"full_scale"`
	DefaultSpeed     int      `yaml:"default_speed"`
	DefaultDirection string   `yaml:"default_direction"`
	PWMChip          string   `yaml:"pwm_chip"`
	PWMChannel       int      `yaml:"pwm_channel"`
	PWMPeriod        Duration `yaml:"pwm_period"`
}

// NotificationsConfig contains rate limiter settings
type NotificationsConfig struct {
	Window        Duration `yaml:"window"`
	Capacity      int      `yaml:"capacity"`
	MotionSpacing Duration `yaml:"motion_spacing"` // 0 disables per-kind spacing
}

// DatastoreConfig selects and configures the remote datastore backend
type DatastoreConfig struct {
	Driver       string       `yaml:"driver"` // mqtt, sqlite or memory
	PushInterval Duration     `yaml:"push_interval"`
	PullInterval Duration     `yaml:"pull_interval"`
	MQTT         MQTTConfig   `yaml:"mqtt"`
	SQLite       SQLiteConfig `yaml:"sqlite"`
}

// MQTTConfig contains broker settings
type MQTTConfig struct {
	Broker          string   `yaml:"broker"`
	ClientID        string   `yaml:"client_id"` // Empty derives homenode-<uuid>
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	Prefix          string   `yaml:"prefix"`
	ConnectAttempts int      `yaml:"connect_attempts"`
	RetryInterval   Duration `yaml:"retry_interval"`
	BufferSize      int      `yaml:"buffer_size"`
}

// SQLiteConfig contains the shared database file
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig contains status server settings
type HTTPConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file over the defaults, so keys
// absent from the file keep their default and an explicit zero is kept as
// written. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	// GPIO defaults
	pins := gpio.DefaultPins
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = pins.Chip
	}
	defaultInt(&cfg.GPIO.Motion, pins.Motion)
	defaultInt(&cfg.GPIO.SwitchLED1, pins.SwitchLED1)
	defaultInt(&cfg.GPIO.SwitchLED2, pins.SwitchLED2)
	defaultInt(&cfg.GPIO.SwitchMotor, pins.SwitchMotor)
	defaultInt(&cfg.GPIO.LED1, pins.LED1)
	defaultInt(&cfg.GPIO.LED2, pins.LED2)
	defaultInt(&cfg.GPIO.MotorForward, pins.MotorForward)
	defaultInt(&cfg.GPIO.MotorReverse, pins.MotorReverse)

	// Input defaults
	defaultDuration(&cfg.Inputs.Poll, 20*time.Millisecond)
	defaultDuration(&cfg.Inputs.MotionStability, 120*time.Millisecond)
	defaultDuration(&cfg.Inputs.SwitchStability, 90*time.Millisecond)

	// Sensor and policy defaults
	if cfg.Light.Device == "" {
		cfg.Light.Device = "/sys/bus/iio/devices/iio:device0"
	}
	defaultDuration(&cfg.Light.SampleInterval, 500*time.Millisecond)
	defaultFloat(&cfg.Light.OnThreshold, 400)
	defaultFloat(&cfg.Light.Margin, 50)
	if cfg.Climate.Device == "" {
		cfg.Climate.Device = "/sys/bus/iio/devices/iio:device1"
	}
	defaultDuration(&cfg.Climate.SampleInterval, 2*time.Second)
	defaultFloat(&cfg.Climate.OnThreshold, 33.0)
	defaultFloat(&cfg.Climate.Hysteresis, 2.0)
	defaultDuration(&cfg.Motion.LEDTimeout, 30*time.Second)

	// Motor defaults
	defaultInt(&cfg.Motor.MaxDrivePercent, 80)
	defaultInt(&cfg.Motor.FullScale, 255)
	defaultInt(&cfg.Motor.DefaultSpeed, 100)
	if cfg.Motor.DefaultDirection == "" {
		cfg.Motor.DefaultDirection = string(logic.DirectionForward)
	}
	if cfg.Motor.PWMChip == "" {
		cfg.Motor.PWMChip = "/sys/class/pwm/pwmchip0"
	}
	defaultDuration(&cfg.Motor.PWMPeriod, 50*time.Microsecond)

	// Notification defaults
	defaultDuration(&cfg.Notifications.Window, 60*time.Second)
	defaultInt(&cfg.Notifications.Capacity, 10)
	defaultDuration(&cfg.Notifications.MotionSpacing, 2*time.Second)

	// Datastore defaults
	if cfg.Datastore.Driver == "" {
		cfg.Datastore.Driver = "mqtt"
	}
	defaultDuration(&cfg.Datastore.PushInterval, 5*time.Second)
	defaultDuration(&cfg.Datastore.PullInterval, time.Second)
	if cfg.Datastore.MQTT.Broker == "" {
		cfg.Datastore.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.Datastore.MQTT.Prefix == "" {
		cfg.Datastore.MQTT.Prefix = "homenode"
	}
	defaultInt(&cfg.Datastore.MQTT.ConnectAttempts, 3)
	defaultDuration(&cfg.Datastore.MQTT.RetryInterval, 2*time.Second)
	defaultInt(&cfg.Datastore.MQTT.BufferSize, 256)
	if cfg.Datastore.SQLite.Path == "" {
		cfg.Datastore.SQLite.Path = "./homenode.sqlite"
	}

	// Logging defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects settings the control loop cannot run with.
func (cfg *Config) Validate() error {
	var errs []error
	positive := func(name string, d Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d.Duration()))
		}
	}
	positive("inputs.poll", cfg.Inputs.Poll)
	positive("inputs.motion_stability", cfg.Inputs.MotionStability)
	positive("inputs.switch_stability", cfg.Inputs.SwitchStability)
	positive("light.sample_interval", cfg.Light.SampleInterval)
	positive("climate.sample_interval", cfg.Climate.SampleInterval)
	positive("motion.led_timeout", cfg.Motion.LEDTimeout)
	positive("notifications.window", cfg.Notifications.Window)
	positive("datastore.push_interval", cfg.Datastore.PushInterval)
	positive("datastore.pull_interval", cfg.Datastore.PullInterval)

	if cfg.Light.Margin <= 0 {
		errs = append(errs, fmt.Errorf("light.margin must be positive, got %v", cfg.Light.Margin))
	}
	if cfg.Climate.Hysteresis <= 0 {
		errs = append(errs, fmt.Errorf("climate.hysteresis must be positive, got %v", cfg.Climate.Hysteresis))
	}
	if cfg.Notifications.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("notifications.capacity must be positive, got %d", cfg.Notifications.Capacity))
	}
	if cfg.Notifications.MotionSpacing < 0 {
		errs = append(errs, fmt.Errorf("notifications.motion_spacing must not be negative"))
	}
	if cfg.Motor.MaxDrivePercent <= 0 || cfg.Motor.MaxDrivePercent > 100 {
		errs = append(errs, fmt.Errorf("motor.max_drive_percent must be in (0,100], got %d", cfg.Motor.MaxDrivePercent))
	}
	if cfg.Motor.FullScale <= 0 {
		errs = append(errs, fmt.Errorf("motor.full_scale must be positive, got %d", cfg.Motor.FullScale))
	}
	if err := logic.ValidateSpeed(cfg.Motor.DefaultSpeed); err != nil {
		errs = append(errs, fmt.Errorf("motor.default_speed: %w", err))
	}
	if _, err := logic.ParseDirection(cfg.Motor.DefaultDirection); err != nil {
		errs = append(errs, fmt.Errorf("motor.default_direction: %w", err))
	}
	switch cfg.Datastore.Driver {
	case "mqtt", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("datastore.driver must be mqtt, sqlite or memory, got %q", cfg.Datastore.Driver))
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	return errors.Join(errs...)
}

func defaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func defaultFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func defaultDuration(v *Duration, def time.Duration) {
	if *v == 0 {
		*v = Duration(def)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
