// Package status provides a thread-safe status tracker for the homenode daemon.
// It is written by the control loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/homenode/internal/logic"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs             int64
	MotionStabilityMs  int64
	SwitchStabilityMs  int64
	PushMs             int64
	PullMs             int64
	MotionLEDTimeoutMs int64
	LightOnLux         float64
	LightMarginLux     float64
	TempOnC            float64
	TempMarginC        float64
	MotorMaxDrive      int
	Datastore          string
	Remote             string
	HTTPAddr           string
}

// MotorOutput is the physical motor command. This is a local copy to avoid
// importing internal/actuator from status.
type MotorOutput struct {
	Drive   int
	Ceiling int
	Forward bool
	Reverse bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and owns its maps, so it is safe to use after the lock
// is released.
type Snapshot struct {
	Actuators       map[logic.Actuator]logic.ActuatorState
	Readings        map[logic.SensorKind]logic.SensorReading
	Motion          bool
	Ready           bool
	Motor           MotorOutput
	Notifications   logic.LimiterCounts
	RemoteConnected bool
	StartTime       time.Time
	Now             time.Time
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets actuator states, last readings, motion and input readiness.
// The maps are copied.
func (t *Tracker) Update(actuators map[logic.Actuator]logic.ActuatorState, readings map[logic.SensorKind]logic.SensorReading, motion, ready bool) {
	a := copyActuators(actuators)
	r := copyReadings(readings)
	t.mu.Lock()
	t.snap.Actuators = a
	t.snap.Readings = r
	t.snap.Motion = motion
	t.snap.Ready = ready
	t.mu.Unlock()
}

// SetMotor sets the last motor command written to the hardware.
func (t *Tracker) SetMotor(m MotorOutput) {
	t.mu.Lock()
	t.snap.Motor = m
	t.mu.Unlock()
}

// SetNotifications sets the rate limiter counters.
func (t *Tracker) SetNotifications(c logic.LimiterCounts) {
	t.mu.Lock()
	t.snap.Notifications = c
	t.mu.Unlock()
}

// SetRemoteConnected sets the datastore connection status.
func (t *Tracker) SetRemoteConnected(connected bool) {
	t.mu.Lock()
	t.snap.RemoteConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Actuators = copyActuators(t.snap.Actuators)
	s.Readings = copyReadings(t.snap.Readings)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

func copyActuators(in map[logic.Actuator]logic.ActuatorState) map[logic.Actuator]logic.ActuatorState {
	if in == nil {
		return nil
	}
	out := make(map[logic.Actuator]logic.ActuatorState, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyReadings(in map[logic.SensorKind]logic.SensorReading) map[logic.SensorKind]logic.SensorReading {
	if in == nil {
		return nil
	}
	out := make(map[logic.SensorKind]logic.SensorReading, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
