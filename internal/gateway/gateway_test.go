package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/logic"
)

var ctx = context.Background()

var t0 = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func newTestGateway() (*Gateway, *datastore.MemoryBackend) {
	mem := datastore.NewMemoryBackend()
	return New(datastore.NewClient(mem, func() time.Time { return t0 })), mem
}

func TestPullFirstValuesAreCommands(t *testing.T) {
	g, mem := newTestGateway()
	mem.Set("/controls/motor/on", "true")
	mem.Set("/controls/motor/speed", "60")
	mem.Set("/controls/motor/direction", "reverse")

	cmds, err := g.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %v", cmds)
	}
	if cmds[0].Field != datastore.FieldOn || !cmds[0].Bool {
		t.Errorf("cmd 0: %v", cmds[0])
	}
	if cmds[1].Field != datastore.FieldSpeed || cmds[1].Int != 60 {
		t.Errorf("cmd 1: %v", cmds[1])
	}
	if cmds[2].Field != datastore.FieldDirection || cmds[2].Text != "reverse" {
		t.Errorf("cmd 2: %v", cmds[2])
	}
}

func TestPullOnlyReportsChanges(t *testing.T) {
	g, mem := newTestGateway()
	mem.Set("/controls/led1/on", "false")
	g.Pull(ctx)

	cmds, _ := g.Pull(ctx)
	if len(cmds) != 0 {
		t.Fatalf("unchanged value reported again: %v", cmds)
	}

	mem.Set("/controls/led1/on", "true")
	cmds, _ = g.Pull(ctx)
	if len(cmds) != 1 || cmds[0].Actuator != logic.ActuatorLED1 || !cmds[0].Bool {
		t.Errorf("expected led1.on=true, got %v", cmds)
	}
}

func TestMirrorIsNotEchoedAsCommand(t *testing.T) {
	g, mem := newTestGateway()
	st := logic.ActuatorState{DesiredOn: true, Mode: logic.ModeManual, AutoEnabled: true}

	if err := g.Mirror(ctx, logic.ActuatorLED2, st); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if v, _ := mem.Value("/controls/led2/manual"); v != "true" {
		t.Errorf("manual: got %q", v)
	}

	cmds, err := g.Pull(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 0 {
		t.Errorf("own writes pulled back as commands: %v", cmds)
	}
}

func TestMirrorSkipsKnownValues(t *testing.T) {
	g, mem := newTestGateway()
	st := logic.ActuatorState{Mode: logic.ModeAuto, AutoEnabled: true, Speed: 50, Direction: logic.DirectionForward}

	g.Mirror(ctx, logic.ActuatorMotor, st)
	if n := len(mem.Writes()); n != 5 {
		t.Fatalf("expected 5 motor writes, got %d", n)
	}
	mem.ResetWrites()

	st.DesiredOn = true
	g.Mirror(ctx, logic.ActuatorMotor, st)
	w := mem.Writes()
	if len(w) != 1 || w[0].Path != "/controls/motor/on" || w[0].Value != "true" {
		t.Errorf("expected only the on leaf, got %v", w)
	}
}

func TestMirrorFailureIsRetried(t *testing.T) {
	g, mem := newTestGateway()
	st := logic.ActuatorState{DesiredOn: true, Mode: logic.ModeAuto, AutoEnabled: true}

	mem.PutError = datastore.ErrOffline
	if err := g.Mirror(ctx, logic.ActuatorLED1, st); !errors.Is(err, datastore.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}

	mem.PutError = nil
	g.Mirror(ctx, logic.ActuatorLED1, st)
	if n := len(mem.Writes()); n != 3 {
		t.Errorf("failed leaves must be rewritten: got %d writes", n)
	}
}

func TestPullMalformedValueKeepsGoing(t *testing.T) {
	g, mem := newTestGateway()
	mem.Set("/controls/motor/speed", "fast")
	mem.Set("/controls/led1/on", "true")

	cmds, err := g.Pull(ctx)
	if !errors.Is(err, datastore.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if len(cmds) != 1 || cmds[0].Actuator != logic.ActuatorLED1 {
		t.Errorf("other controls must still be pulled: %v", cmds)
	}
}

func TestPullOffline(t *testing.T) {
	g, mem := newTestGateway()
	mem.GetError = datastore.ErrOffline

	cmds, err := g.Pull(ctx)
	if !errors.Is(err, datastore.ErrOffline) {
		t.Errorf("expected ErrOffline, got %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("offline pull produced commands: %v", cmds)
	}
}

func TestPush(t *testing.T) {
	g, mem := newTestGateway()
	err := g.Push(ctx, Telemetry{
		Readings: map[logic.SensorKind]logic.SensorReading{
			logic.SensorTemperature: {Kind: logic.SensorTemperature, Value: 21.5, Timestamp: t0},
			logic.SensorLight:       {Kind: logic.SensorLight, Value: 412.6, Timestamp: t0},
		},
		Motion: true,
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	want := map[datastore.Path]string{
		datastore.PathTemperature: "21.5",
		datastore.PathLux:         "413",
		datastore.PathMotion:      "true",
		datastore.PathLastSeen:    "1770070692000",
	}
	for p, v := range want {
		if got, _ := mem.Value(p); got != v {
			t.Errorf("%s: got %q, want %q", p, got, v)
		}
	}
	if _, ok := mem.Value(datastore.PathHumidity); ok {
		t.Error("humidity was never read and must not be pushed")
	}
}

func TestPublishNotification(t *testing.T) {
	g, mem := newTestGateway()
	ev := logic.NotificationEvent{
		Timestamp: t0,
		Kind:      logic.NotifyRemote,
		Actor:     "dashboard",
		Message:   "motor on",
		Detail:    map[string]any{"actuator": "motor"},
	}
	if err := g.PublishNotification(ctx, ev); err != nil {
		t.Fatalf("PublishNotification: %v", err)
	}

	if v, _ := mem.Value("/notifications/1770070692000/type"); v != "remote" {
		t.Errorf("type: got %q", v)
	}
	if v, _ := mem.Value("/notifications/1770070692000/ts"); v != "1770070692000" {
		t.Errorf("ts: got %q", v)
	}
	raw, _ := mem.Value("/notifications/1770070692000/details")
	var details map[string]any
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		t.Fatalf("details not JSON: %q", raw)
	}
	if details["actuator"] != "motor" || details["event_id"] == "" {
		t.Errorf("unexpected details: %v", details)
	}
	if _, ok := ev.Detail["event_id"]; ok {
		t.Error("event detail map must not be modified")
	}
}

func TestPublishNotificationIDsAreUnique(t *testing.T) {
	g, mem := newTestGateway()
	for i := 0; i < 3; i++ {
		g.PublishNotification(ctx, logic.NotificationEvent{Timestamp: t0, Kind: logic.NotifySwitch})
	}

	ids := map[string]bool{}
	for _, w := range mem.Writes() {
		if strings.HasSuffix(string(w.Path), "/type") {
			ids[string(w.Path)] = true
		}
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 distinct notification ids, got %v", ids)
	}
	if _, ok := mem.Value("/notifications/1770070692002/type"); !ok {
		t.Error("expected third id bumped by 2ms")
	}
}
