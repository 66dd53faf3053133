package node

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/homenode/internal/actuator"
	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
	"github.com/sweeney/homenode/internal/metrics"
	"github.com/sweeney/homenode/internal/sensor"
	"github.com/sweeney/homenode/internal/status"
)

var ctx = context.Background()

var t0 = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

const step = 10 * time.Millisecond

func testConfig() Config {
	return Config{
		Poll:             20 * time.Millisecond,
		MotionStability:  120 * time.Millisecond,
		SwitchStability:  90 * time.Millisecond,
		LightInterval:    500 * time.Millisecond,
		LightOn:          400,
		LightMargin:      50,
		ClimateInterval:  2 * time.Second,
		TempOn:           33.0,
		TempMargin:       2.0,
		MotionLEDTimeout: 30 * time.Second,
		NotifyWindow:     time.Minute,
		NotifyCapacity:   10,
		MotionSpacing:    2 * time.Second,
		PushInterval:     5 * time.Second,
		PullInterval:     time.Second,
		MotorSpeed:       100,
		MotorDirection:   logic.DirectionForward,
	}
}

type harness struct {
	node    *Node
	in      *gpio.FakeInputs
	out     *gpio.FakeOutputs
	drive   *actuator.FakeDrive
	src     *sensor.FakeSource
	mem     *datastore.MemoryBackend
	metrics *metrics.Metrics
	tracker *status.Tracker
	now     time.Time
	started bool
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		in:      gpio.NewFakeInputs([]gpio.Sample{{}}),
		out:     gpio.NewFakeOutputs(),
		drive:   &actuator.FakeDrive{FullScale: 255},
		src:     &sensor.FakeSource{Lux: 1000, Temperature: 25, Humidity: 40},
		mem:     datastore.NewMemoryBackend(),
		metrics: metrics.New(),
		tracker: status.NewTracker(t0, status.Config{}),
		now:     t0,
	}
	h.node = New(cfg, Deps{
		Inputs:     h.in,
		Sampler:    sensor.NewSampler(h.src),
		Controller: actuator.NewController(h.out, h.drive, actuator.NewLimits(255, 80)),
		Store:      datastore.NewClient(h.mem, func() time.Time { return h.now }),
		Tracker:    h.tracker,
		Metrics:    h.metrics,
	}, t0)
	return h
}

// advance ticks the node every 10ms for d.
func (h *harness) advance(d time.Duration) {
	if !h.started {
		h.started = true
		h.node.Tick(ctx, h.now)
	}
	for end := h.now.Add(d); h.now.Before(end); {
		h.now = h.now.Add(step)
		h.node.Tick(ctx, h.now)
	}
}

// press holds a switch for 150ms and releases it for 150ms.
func (h *harness) press(set func(s *gpio.Sample)) {
	var s gpio.Sample
	set(&s)
	h.in.Set(s)
	h.advance(150 * time.Millisecond)
	h.in.Set(gpio.Sample{})
	h.advance(150 * time.Millisecond)
}

func (h *harness) motor() *logic.ActuatorState {
	return h.node.State().Actuator(logic.ActuatorMotor)
}

func (h *harness) remote(p datastore.Path) string {
	v, _ := h.mem.Value(p)
	return v
}

// notifications counts published notifications of kind.
func (h *harness) notifications(kind logic.NotificationKind) int {
	n := 0
	for _, w := range h.mem.Writes() {
		if strings.HasSuffix(string(w.Path), "/"+datastore.NotificationType) && w.Value == string(kind) {
			n++
		}
	}
	return n
}

func (h *harness) writesTo(p datastore.Path, v string) int {
	n := 0
	for _, w := range h.mem.Writes() {
		if w.Path == p && w.Value == v {
			n++
		}
	}
	return n
}

func TestTemperatureDrivesMotorWithHysteresis(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Temperature = 30
	h.advance(2100 * time.Millisecond)
	if h.motor().DesiredOn {
		t.Fatal("motor on at 30C")
	}

	h.src.Temperature = 33
	h.advance(2000 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Fatal("motor should turn on at 33C")
	}
	if h.drive.Level != 204 || !h.out.Forward || h.out.Reverse {
		t.Errorf("physical motor: drive=%d forward=%v reverse=%v", h.drive.Level, h.out.Forward, h.out.Reverse)
	}

	h.src.Temperature = 31.5
	h.advance(2000 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Fatal("motor must stay on inside the band")
	}

	h.src.Temperature = 30.9
	h.advance(2000 * time.Millisecond)
	if h.motor().DesiredOn {
		t.Fatal("motor should turn off below 31C")
	}
	if h.drive.Level != 0 || h.out.Forward || h.out.Reverse {
		t.Errorf("motor not stopped: drive=%d forward=%v reverse=%v", h.drive.Level, h.out.Forward, h.out.Reverse)
	}

	if got := testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("motor", "auto")); got != 2 {
		t.Errorf("expected exactly one ON and one OFF, got %v transitions", got)
	}
	if got := h.writesTo("/controls/motor/on", "true"); got != 1 {
		t.Errorf("motor on mirrored %d times, want 1", got)
	}
	if got := h.remote("/controls/motor/on"); got != "false" {
		t.Errorf("remote motor/on: got %q", got)
	}
	if got := h.notifications(logic.NotifyAuto); got != 2 {
		t.Errorf("auto notifications: got %d, want 2", got)
	}
}

func TestManualPriorityOverDashboard(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.ClimateError = errors.New("no climate sensor")
	h.advance(200 * time.Millisecond)

	h.press(func(s *gpio.Sample) { s.SwitchMotor = true })
	if h.motor().Mode != logic.ModeManual || !h.motor().DesiredOn {
		t.Fatalf("switch press should enter manual on: %+v", *h.motor())
	}

	h.mem.Set("/controls/motor/on", "false")
	h.advance(1100 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Fatal("dashboard command must be ignored while manual")
	}
	if got := h.remote("/controls/motor/on"); got != "true" {
		t.Errorf("dashboard should be corrected to the local state, got %q", got)
	}
	if got := testutil.ToFloat64(h.metrics.RejectedCommands.WithLabelValues("on", "manual")); got != 1 {
		t.Errorf("rejected commands: got %v", got)
	}

	h.press(func(s *gpio.Sample) { s.SwitchMotor = true })
	if h.motor().Mode != logic.ModeAuto || !h.motor().DesiredOn {
		t.Fatalf("second press should return to auto keeping the output: %+v", *h.motor())
	}

	h.mem.Set("/controls/motor/on", "false")
	h.advance(1100 * time.Millisecond)
	if h.motor().DesiredOn {
		t.Fatal("dashboard command should apply in auto mode")
	}
	if h.motor().Mode != logic.ModeAuto {
		t.Error("dashboard command must not change mode")
	}
	if got := h.notifications(logic.NotifyRemote); got != 1 {
		t.Errorf("remote notifications: got %d, want 1", got)
	}
}

func TestManualHoldsMotorAcrossThresholds(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Temperature = 30
	h.advance(2100 * time.Millisecond)

	h.press(func(s *gpio.Sample) { s.SwitchMotor = true })
	if h.motor().Mode != logic.ModeManual || !h.motor().DesiredOn {
		t.Fatalf("switch press should enter manual on: %+v", *h.motor())
	}

	h.src.Temperature = 33
	h.advance(2000 * time.Millisecond)
	h.src.Temperature = 30.9
	h.advance(2000 * time.Millisecond)
	if !h.motor().DesiredOn || h.drive.Level == 0 {
		t.Fatal("policy must not move a manual output")
	}
	if got := testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("motor", "auto")); got != 0 {
		t.Errorf("no automatic transitions while manual, got %v", got)
	}

	// Back in auto the current reading decides: 30.9C is below the off threshold.
	h.press(func(s *gpio.Sample) { s.SwitchMotor = true })
	h.advance(100 * time.Millisecond)
	if h.motor().Mode != logic.ModeAuto || h.motor().DesiredOn {
		t.Fatalf("expected auto off after manual cleared: %+v", *h.motor())
	}
	if got := testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("motor", "auto")); got != 1 {
		t.Errorf("expected one automatic transition, got %v", got)
	}
}

func TestSwitchReleaseIsIgnored(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advance(200 * time.Millisecond)

	h.in.Set(gpio.Sample{SwitchLED1: true})
	h.advance(500 * time.Millisecond)
	h.in.Set(gpio.Sample{})
	h.advance(500 * time.Millisecond)

	led1 := h.node.State().Actuator(logic.ActuatorLED1)
	if led1.Mode != logic.ModeManual {
		t.Errorf("hold and release must count as one press, mode=%s", led1.Mode)
	}
	if got := h.notifications(logic.NotifySwitch); got != 1 {
		t.Errorf("switch notifications: got %d, want 1", got)
	}
}

func TestDashboardManualFlag(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advance(200 * time.Millisecond)

	h.mem.Set("/controls/led1/manual", "true")
	h.advance(1100 * time.Millisecond)
	led1 := h.node.State().Actuator(logic.ActuatorLED1)
	if led1.Mode != logic.ModeAuto {
		t.Fatal("only a physical switch may enter manual")
	}
	if got := h.remote("/controls/led1/manual"); got != "false" {
		t.Errorf("dashboard manual flag not corrected: %q", got)
	}

	h.press(func(s *gpio.Sample) { s.SwitchLED1 = true })
	if led1.Mode != logic.ModeManual || !led1.DesiredOn {
		t.Fatalf("expected manual on, got %+v", *led1)
	}

	// Clearing from the dashboard hands control back; the room is bright,
	// so the light policy switches the output off again.
	h.mem.Set("/controls/led1/manual", "false")
	h.advance(1100 * time.Millisecond)
	if led1.Mode != logic.ModeAuto {
		t.Fatal("dashboard should be able to clear manual")
	}
	if led1.DesiredOn || h.out.Lights[1] {
		t.Error("policy should re-decide from the current reading after manual is cleared")
	}
}

func TestMotionNotificationsAreRateLimited(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advance(200 * time.Millisecond)

	h.in.Set(gpio.Sample{Motion: true})
	h.advance(200 * time.Millisecond)
	h.in.Set(gpio.Sample{})
	h.advance(200 * time.Millisecond)
	h.in.Set(gpio.Sample{Motion: true})
	h.advance(200 * time.Millisecond)

	if !h.node.State().Motion {
		t.Fatal("expected motion")
	}
	if got := h.notifications(logic.NotifyMotion); got != 1 {
		t.Errorf("motion notifications published: got %d, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.NotificationsSuppressed.WithLabelValues("motion", logic.ReasonSpacing)); got != 1 {
		t.Errorf("suppressed by spacing: got %v, want 1", got)
	}
	if got := h.remote(datastore.PathMotion); got != "true" {
		t.Errorf("remote motion: got %q", got)
	}
}

func TestMotionPresentAtBoot(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.Set(gpio.Sample{Motion: true})
	h.advance(300 * time.Millisecond)

	if !h.node.Ready() {
		t.Fatal("inputs should be baselined")
	}
	if !h.node.State().Motion {
		t.Error("motion held since boot must be reflected in state")
	}
	if !h.out.Lights[2] {
		t.Error("led2 should follow motion present at boot")
	}
	if got := h.remote(datastore.PathMotion); got != "true" {
		t.Errorf("remote motion: got %q", got)
	}
	if got := h.notifications(logic.NotifyMotion); got != 0 {
		t.Errorf("baseline must not notify, got %d motion notifications", got)
	}
}

func TestMotionLightTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MotionLEDTimeout = time.Second
	h := newHarness(t, cfg)
	h.advance(200 * time.Millisecond)

	h.in.Set(gpio.Sample{Motion: true})
	h.advance(200 * time.Millisecond)
	if !h.out.Lights[2] {
		t.Fatal("motion should turn led2 on")
	}

	h.in.Set(gpio.Sample{})
	h.advance(900 * time.Millisecond)
	if !h.out.Lights[2] {
		t.Fatal("led2 released before the timeout")
	}
	h.advance(500 * time.Millisecond)
	if h.out.Lights[2] {
		t.Error("led2 should be off after the timeout")
	}
}

func TestDarkRoomTurnsLED1On(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Lux = 300
	h.advance(100 * time.Millisecond)
	if !h.out.Lights[1] {
		t.Fatal("led1 should turn on below 400 lux")
	}

	h.src.Lux = 440
	h.advance(600 * time.Millisecond)
	if !h.out.Lights[1] {
		t.Fatal("led1 must stay on inside the band")
	}

	h.src.Lux = 460
	h.advance(600 * time.Millisecond)
	if h.out.Lights[1] {
		t.Error("led1 should turn off above 450 lux")
	}
}

func TestContinuesOffline(t *testing.T) {
	h := newHarness(t, testConfig())
	h.mem.GetError = datastore.ErrOffline
	h.mem.PutError = datastore.ErrOffline
	h.src.Temperature = 34

	h.advance(100 * time.Millisecond)
	if !h.motor().DesiredOn || h.drive.Level != 204 {
		t.Fatal("local control must work without the datastore")
	}
	if got := testutil.ToFloat64(h.metrics.OperationErrors.WithLabelValues("pull")); got < 1 {
		t.Error("expected a pull error")
	}

	h.mem.GetError = nil
	h.mem.PutError = nil
	h.advance(1100 * time.Millisecond)
	if got := h.remote("/controls/motor/on"); got != "true" {
		t.Errorf("pending mirror not retried after reconnect: %q", got)
	}
}

func TestBufferedNotificationIsNotAFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.mem.PutError = datastore.ErrBuffered
	h.node.Start(t0)
	h.advance(100 * time.Millisecond)

	if got := testutil.ToFloat64(h.metrics.NotificationsEmitted.WithLabelValues("system")); got != 1 {
		t.Errorf("system notifications emitted: got %v", got)
	}
	if got := testutil.ToFloat64(h.metrics.OperationErrors.WithLabelValues("notify")); got != 0 {
		t.Errorf("a buffered notification must not count as lost, got %v errors", got)
	}

	h.mem.PutError = datastore.ErrOffline
	h.node.Shutdown(ctx, h.now, "SIGTERM")
	if got := testutil.ToFloat64(h.metrics.OperationErrors.WithLabelValues("notify")); got != 1 {
		t.Errorf("an unbuffered failure is lost: got %v errors", got)
	}
}

func TestInvalidSpeedRejected(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advance(200 * time.Millisecond)

	h.mem.Set("/controls/motor/speed", "150")
	h.advance(1100 * time.Millisecond)
	if h.motor().Speed != 100 {
		t.Errorf("speed changed to %d", h.motor().Speed)
	}
	if got := h.remote("/controls/motor/speed"); got != "100" {
		t.Errorf("dashboard speed not corrected: %q", got)
	}
	if got := testutil.ToFloat64(h.metrics.RejectedCommands.WithLabelValues("speed", "invalid")); got != 1 {
		t.Errorf("rejected: got %v", got)
	}

	h.mem.Set("/controls/motor/speed", "50")
	h.mem.Set("/controls/motor/direction", "reverse")
	h.mem.Set("/controls/motor/on", "true")
	h.advance(1100 * time.Millisecond)
	if h.motor().Speed != 50 || h.motor().Direction != logic.DirectionReverse {
		t.Fatalf("motor settings not applied: %+v", *h.motor())
	}
	if h.drive.Level != 127 || !h.out.Reverse || h.out.Forward {
		t.Errorf("physical motor: drive=%d forward=%v reverse=%v", h.drive.Level, h.out.Forward, h.out.Reverse)
	}
}

func TestAutoDisabledHoldsOutput(t *testing.T) {
	h := newHarness(t, testConfig())
	h.advance(200 * time.Millisecond)

	h.mem.Set("/controls/motor/auto_enabled", "false")
	h.advance(1100 * time.Millisecond)
	h.src.Temperature = 35
	h.advance(2100 * time.Millisecond)
	if h.motor().DesiredOn {
		t.Fatal("policy must not drive the motor with auto disabled")
	}
	if h.motor().Mode != logic.ModeAuto {
		t.Error("auto_enabled must not change mode")
	}

	h.mem.Set("/controls/motor/auto_enabled", "true")
	h.advance(1100 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Error("re-enabling should let the policy decide from the current reading")
	}
}

func TestSensorFaultKeepsLastGoodValue(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Temperature = 34
	h.advance(100 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Fatal("expected motor on")
	}

	h.src.ClimateError = errors.New("crc mismatch")
	h.advance(4100 * time.Millisecond)
	if !h.motor().DesiredOn {
		t.Error("a sensor fault must not force the motor off")
	}
	r, ok := h.node.State().Reading(logic.SensorTemperature)
	if !ok || r.Value != 34 {
		t.Errorf("last good reading lost: %+v", r)
	}
	if got := testutil.ToFloat64(h.metrics.SensorFaults.WithLabelValues("temperature")); got != 2 {
		t.Errorf("temperature faults: got %v, want 2", got)
	}
}

func TestFirstPullRestoresDashboardState(t *testing.T) {
	h := newHarness(t, testConfig())
	h.mem.Set("/controls/led2/on", "true")

	h.advance(0)
	if !h.out.Lights[2] {
		t.Error("dashboard state should be restored on the first pull")
	}
}

func TestStartAndShutdown(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Temperature = 34
	h.node.Start(t0)
	h.advance(100 * time.Millisecond)

	if got := h.notifications(logic.NotifySystem); got != 1 {
		t.Fatalf("startup notification: got %d", got)
	}
	if h.drive.Level == 0 {
		t.Fatal("expected motor running before shutdown")
	}

	if err := h.node.Shutdown(ctx, h.now, "SIGTERM"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if h.drive.Level != 0 || h.out.Forward || h.out.Reverse || h.out.Lights[1] || h.out.Lights[2] {
		t.Error("outputs not stopped")
	}
	if got := h.notifications(logic.NotifySystem); got != 2 {
		t.Errorf("shutdown notification: got %d system notifications", got)
	}
}

func TestStatusTracker(t *testing.T) {
	h := newHarness(t, testConfig())
	h.src.Temperature = 34
	h.advance(300 * time.Millisecond)

	snap := h.tracker.Snapshot()
	if !snap.Ready {
		t.Error("inputs should be baselined after 300ms")
	}
	if !snap.Actuators[logic.ActuatorMotor].DesiredOn {
		t.Error("tracker missing motor state")
	}
	if snap.Motor.Drive != 204 || snap.Motor.Ceiling != 204 {
		t.Errorf("tracker motor: %+v", snap.Motor)
	}
	if snap.Readings[logic.SensorTemperature].Value != 34 {
		t.Errorf("tracker readings: %+v", snap.Readings)
	}
	if !snap.RemoteConnected {
		t.Error("memory datastore is always connected")
	}
}

func TestGPIOErrorDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, testConfig())
	h.in.ReadError = errors.New("line busy")
	h.src.Temperature = 34
	h.advance(100 * time.Millisecond)

	if !h.motor().DesiredOn {
		t.Error("policy must keep running when inputs fail")
	}
	if got := testutil.ToFloat64(h.metrics.OperationErrors.WithLabelValues("gpio")); got < 1 {
		t.Error("expected gpio errors counted")
	}
}
