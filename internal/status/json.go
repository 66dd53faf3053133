package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/homenode/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Ready         bool                    `json:"ready"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StartTime     string                  `json:"start_time"`
	Timestamp     string                  `json:"timestamp"`
	Actuators     map[string]ActuatorJSON `json:"actuators"`
	Motor         MotorJSON               `json:"motor_output"`
	Sensors       map[string]ReadingJSON  `json:"sensors"`
	Motion        bool                    `json:"motion"`
	Notifications NotificationsJSON       `json:"notifications"`
	Remote        RemoteStatus            `json:"remote"`
	Network       *NetworkJSON            `json:"network,omitempty"`
	Config        ConfigJSON              `json:"config"`
}

// ActuatorJSON is the JSON representation of one actuator state.
type ActuatorJSON struct {
	On          bool   `json:"on"`
	Mode        string `json:"mode"`
	AutoEnabled bool   `json:"auto_enabled"`
	Speed       *int   `json:"speed,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// MotorJSON is the JSON representation of the physical motor command.
type MotorJSON struct {
	Drive   int  `json:"drive"`
	Ceiling int  `json:"ceiling"`
	Forward bool `json:"forward"`
	Reverse bool `json:"reverse"`
}

// ReadingJSON is one sensor reading.
type ReadingJSON struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// NotificationsJSON reports rate limiter counters.
type NotificationsJSON struct {
	Emitted           int `json:"emitted"`
	SuppressedWindow  int `json:"suppressed_window"`
	SuppressedSpacing int `json:"suppressed_spacing"`
}

// RemoteStatus reports datastore connection state.
type RemoteStatus struct {
	Connected bool   `json:"connected"`
	Driver    string `json:"driver"`
	Address   string `json:"address"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs             int64   `json:"poll_ms"`
	MotionStabilityMs  int64   `json:"motion_stability_ms"`
	SwitchStabilityMs  int64   `json:"switch_stability_ms"`
	PushMs             int64   `json:"push_ms"`
	PullMs             int64   `json:"pull_ms"`
	MotionLEDTimeoutMs int64   `json:"motion_led_timeout_ms"`
	LightOnLux         float64 `json:"light_on_lux"`
	LightMarginLux     float64 `json:"light_margin_lux"`
	TempOnC            float64 `json:"temperature_on_c"`
	TempMarginC        float64 `json:"temperature_margin_c"`
	MotorMaxDrive      int     `json:"motor_max_drive_percent"`
	HTTPAddr           string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Actuators:     make(map[string]ActuatorJSON, len(snap.Actuators)),
		Motor: MotorJSON{
			Drive:   snap.Motor.Drive,
			Ceiling: snap.Motor.Ceiling,
			Forward: snap.Motor.Forward,
			Reverse: snap.Motor.Reverse,
		},
		Sensors: make(map[string]ReadingJSON, len(snap.Readings)),
		Motion:  snap.Motion,
		Notifications: NotificationsJSON{
			Emitted:           snap.Notifications.Emitted,
			SuppressedWindow:  snap.Notifications.SuppressedWindow,
			SuppressedSpacing: snap.Notifications.SuppressedSpacing,
		},
		Remote: RemoteStatus{
			Connected: snap.RemoteConnected,
			Driver:    snap.Config.Datastore,
			Address:   snap.Config.Remote,
		},
		Config: ConfigJSON{
			PollMs:             snap.Config.PollMs,
			MotionStabilityMs:  snap.Config.MotionStabilityMs,
			SwitchStabilityMs:  snap.Config.SwitchStabilityMs,
			PushMs:             snap.Config.PushMs,
			PullMs:             snap.Config.PullMs,
			MotionLEDTimeoutMs: snap.Config.MotionLEDTimeoutMs,
			LightOnLux:         snap.Config.LightOnLux,
			LightMarginLux:     snap.Config.LightMarginLux,
			TempOnC:            snap.Config.TempOnC,
			TempMarginC:        snap.Config.TempMarginC,
			MotorMaxDrive:      snap.Config.MotorMaxDrive,
			HTTPAddr:           snap.Config.HTTPAddr,
		},
	}

	for a, st := range snap.Actuators {
		aj := ActuatorJSON{
			On:          st.DesiredOn,
			Mode:        string(st.Mode),
			AutoEnabled: st.AutoEnabled,
		}
		if a == logic.ActuatorMotor {
			speed := st.Speed
			aj.Speed = &speed
			aj.Direction = string(st.Direction)
		}
		inner.Actuators[string(a)] = aj
	}
	for kind, r := range snap.Readings {
		if !r.Valid() {
			continue
		}
		inner.Sensors[string(kind)] = ReadingJSON{
			Value:     r.Value,
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
