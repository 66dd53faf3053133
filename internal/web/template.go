package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/homenode/internal/logic"
	"github.com/sweeney/homenode/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(on bool) string {
		return string(logic.StateOf(on))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Home Node</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 30%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.manual { color: orange; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Home Node</h1>

<h2>Actuators</h2>
<table>
<tr><th></th><th>Output</th><th>Mode</th><th>Auto</th></tr>
{{range .Actuators}}<tr><th>{{.Name}}</th><td class="{{if .State.DesiredOn}}on{{else}}off{{end}}">{{onOff .State.DesiredOn}}{{if .Motor}} {{.State.Speed}}% {{.State.Direction}}{{end}}</td><td{{if eq (printf "%s" .State.Mode) "MANUAL"}} class="manual"{{end}}>{{.State.Mode}}</td><td>{{if .State.AutoEnabled}}enabled{{else}}disabled{{end}}</td></tr>
{{else}}<tr><td colspan="4" class="unknown">starting</td></tr>
{{end}}</table>
<p>Motor drive {{.Motor.Drive}} / {{.Motor.Ceiling}}{{if .Motor.Forward}} forward{{else if .Motor.Reverse}} reverse{{end}}</p>

<h2>Sensors</h2>
<table>
<tr><th>Motion</th><td class="{{if .Motion}}on{{else}}off{{end}}">{{if .Motion}}detected{{else}}clear{{end}}</td></tr>
{{range .Sensors}}<tr><th>{{.Kind}}</th><td>{{if .Reading.Valid}}{{printf "%.1f" .Reading.Value}}{{.Unit}} <small>{{.Reading.Timestamp.UTC.Format "15:04:05"}}</small>{{else}}<span class="unknown">no reading</span>{{end}}</td></tr>
{{end}}<tr><th>Inputs ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Datastore</th><td class="{{if .RemoteConnected}}connected{{else}}disconnected{{end}}">{{if .RemoteConnected}}connected{{else}}offline{{end}}</td></tr>
<tr><th>Driver</th><td>{{.Config.Datastore}} {{.Config.Remote}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Notifications</h2>
<table>
<tr><th>Emitted</th><td>{{.Notifications.Emitted}}</td></tr>
<tr><th>Suppressed (window)</th><td>{{.Notifications.SuppressedWindow}}</td></tr>
<tr><th>Suppressed (spacing)</th><td>{{.Notifications.SuppressedSpacing}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Stability</th><td>motion {{.Config.MotionStabilityMs}}ms, switch {{.Config.SwitchStabilityMs}}ms</td></tr>
<tr><th>Light</th><td>on below {{.Config.LightOnLux}} lx, margin {{.Config.LightMarginLux}}</td></tr>
<tr><th>Temperature</th><td>on at {{.Config.TempOnC}} &deg;C, margin {{.Config.TempMarginC}}</td></tr>
<tr><th>Motor ceiling</th><td>{{.Config.MotorMaxDrive}}%</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

type actuatorRow struct {
	Name  logic.Actuator
	State logic.ActuatorState
	Motor bool
}

type sensorRow struct {
	Kind    logic.SensorKind
	Unit    string
	Reading logic.SensorReading
}

var sensorUnits = []struct {
	kind logic.SensorKind
	unit string
}{
	{logic.SensorLight, " lx"},
	{logic.SensorTemperature, " °C"},
	{logic.SensorHumidity, " %"},
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Maps render in random order; the page lists rows in a fixed order.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Actuators []actuatorRow
		Sensors   []sensorRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, a := range logic.Actuators {
		if st, ok := snap.Actuators[a]; ok {
			data.Actuators = append(data.Actuators, actuatorRow{Name: a, State: st, Motor: a == logic.ActuatorMotor})
		}
	}
	for _, s := range sensorUnits {
		data.Sensors = append(data.Sensors, sensorRow{Kind: s.kind, Unit: s.unit, Reading: snap.Readings[s.kind]})
	}
	indexTmpl.Execute(w, data)
}
