package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/gateway"
	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
	"github.com/sweeney/homenode/internal/sensor"
	"github.com/sweeney/homenode/internal/status"
)

func switchLevels(s gpio.Sample) map[logic.Actuator]bool {
	return map[logic.Actuator]bool{
		logic.ActuatorLED1:  s.SwitchLED1,
		logic.ActuatorLED2:  s.SwitchLED2,
		logic.ActuatorMotor: s.SwitchMotor,
	}
}

// readInputs debounces the PIR and the switches. A switch acts on its
// settled press only; the release is ignored.
func (n *Node) readInputs(_ context.Context, now time.Time) {
	sample, err := n.deps.Inputs.Read()
	if err != nil {
		n.fail("gpio", err, "gpio: read failed")
		return
	}
	n.succeeded("gpio")

	baselined := n.motion.IsBaselined()
	motion, changed := n.motion.Update(sample.Motion, now)
	if !baselined && n.motion.IsBaselined() {
		// The settled boot level is state, not an event: no notification.
		n.state.Motion = motion
		n.motionDirty = true
		log.Info().Bool("motion", motion).Msg("input: motion baselined")
	}
	if changed {
		n.state.Motion = motion
		n.motionDirty = true
		log.Info().Bool("motion", motion).Msg("input: motion changed")
		if motion {
			n.state.Notify(logic.NotifyMotion, "pir", "motion detected", now, nil)
		}
	}

	levels := switchLevels(sample)
	for _, a := range logic.Actuators {
		pressed, changed := n.switches[a].Update(levels[a], now)
		if changed && pressed {
			n.switchPressed(a, now)
		}
	}
}

func (n *Node) switchPressed(a logic.Actuator, now time.Time) {
	st := n.state.Actuator(a)
	mode := st.SwitchPress()
	msg := fmt.Sprintf("%s switched %s by hand", a, logic.StateOf(st.DesiredOn))
	if mode == logic.ModeAuto {
		n.resync(a, now)
		msg = fmt.Sprintf("%s returned to automatic control", a)
	}
	n.changed(a, logic.SourceSwitch)
	n.state.Notify(logic.NotifySwitch, "switch", msg, now, map[string]any{
		"actuator": string(a),
		"mode":     string(mode),
		"on":       st.DesiredOn,
	})
	log.Info().Str("actuator", string(a)).Str("mode", string(mode)).Bool("on", st.DesiredOn).Msg("input: switch pressed")
}

func (n *Node) sampleLight(_ context.Context, now time.Time) {
	r, err := n.deps.Sampler.Light(now)
	if err != nil {
		n.sensorFault(err)
		return
	}
	n.record(r)
}

func (n *Node) sampleClimate(_ context.Context, now time.Time) {
	readings, err := n.deps.Sampler.Climate(now)
	for _, r := range readings {
		n.record(r)
	}
	if err != nil {
		n.sensorFault(err)
	}
}

func (n *Node) record(r logic.SensorReading) {
	n.state.Record(r)
	n.metrics.Sensor.WithLabelValues(string(r.Kind)).Set(r.Value)
	if n.failing["sensor:"+string(r.Kind)] {
		delete(n.failing, "sensor:"+string(r.Kind))
		log.Info().Str("sensor", string(r.Kind)).Float64("value", r.Value).Msg("sensor: recovered")
	}
}

// sensorFault keeps the last good reading. The policy only ever sees good
// readings, so a fault never forces an output off.
func (n *Node) sensorFault(err error) {
	for _, f := range sensor.Faults(err) {
		key := "sensor:" + string(f.Kind)
		n.metrics.SensorFaults.WithLabelValues(string(f.Kind)).Inc()
		ev := log.Debug()
		if !n.failing[key] {
			ev = log.Warn()
		}
		n.failing[key] = true
		ev.Err(f.Err).Str("sensor", string(f.Kind)).Msg("sensor: reading rejected, keeping last good value")
	}
}

// evaluatePolicy runs the automatic rules on the current readings. The rules
// still see readings while an actuator is manual, but ApplyAuto refuses to
// move a manual output, and the rule is resynced to the actual output when
// automatic control resumes.
func (n *Node) evaluatePolicy(_ context.Context, now time.Time) {
	if r, ok := n.state.Reading(logic.SensorLight); ok {
		if on, changed := n.lightBand.Evaluate(r.Value); changed {
			n.applyAuto(logic.ActuatorLED1, on, now, r)
		}
	}
	if on, changed := n.motionLight.Evaluate(n.state.Motion, now); changed {
		n.applyAuto(logic.ActuatorLED2, on, now, logic.SensorReading{Kind: logic.SensorMotion, Timestamp: now})
	}
	if r, ok := n.state.Reading(logic.SensorTemperature); ok {
		if on, changed := n.tempBand.Evaluate(r.Value); changed {
			n.applyAuto(logic.ActuatorMotor, on, now, r)
		}
	}
}

func (n *Node) applyAuto(a logic.Actuator, on bool, now time.Time, cause logic.SensorReading) {
	st := n.state.Actuator(a)
	if !st.ApplyAuto(on) {
		return
	}
	n.changed(a, logic.SourceAuto)
	detail := map[string]any{
		"actuator": string(a),
		"on":       on,
		"sensor":   string(cause.Kind),
	}
	if cause.Kind != logic.SensorMotion {
		detail["value"] = cause.Value
	}
	n.state.Notify(logic.NotifyAuto, "policy", fmt.Sprintf("%s turned %s automatically", a, logic.StateOf(on)), now, detail)
	log.Info().Str("actuator", string(a)).Bool("on", on).Str("sensor", string(cause.Kind)).Float64("value", cause.Value).Msg("policy: output changed")
}

// resync aligns the automatic rule of a with its current output so the
// next reading decides from the actual state.
func (n *Node) resync(a logic.Actuator, now time.Time) {
	on := n.state.Actuator(a).DesiredOn
	switch a {
	case logic.ActuatorLED1:
		n.lightBand.Resync(on)
	case logic.ActuatorLED2:
		n.motionLight.Resync(on, now)
	case logic.ActuatorMotor:
		n.tempBand.Resync(on)
	}
}

// changed records a local actuator change that must be mirrored.
func (n *Node) changed(a logic.Actuator, src logic.Source) {
	n.dirty[a] = true
	n.metrics.Transitions.WithLabelValues(string(a), string(src)).Inc()
	on := 0.0
	if n.state.Actuator(a).DesiredOn {
		on = 1
	}
	n.metrics.ActuatorOn.WithLabelValues(string(a)).Set(on)
}

func (n *Node) actuate(_ context.Context, _ time.Time) {
	if err := n.deps.Controller.Apply(n.state.Copy()); err != nil {
		n.fail("actuate", err, "actuator: write failed, retrying next tick")
		return
	}
	n.succeeded("actuate")
}

func (n *Node) mirrorPending() bool {
	return len(n.dirty) > 0 || n.motionDirty
}

func (n *Node) mirrorDue(now time.Time) bool {
	return n.mirrorPending() && !now.Before(n.mirrorRetryAt)
}

// mirror writes changed actuators back to the datastore. Failed writes stay
// pending and are retried after one pull interval.
func (n *Node) mirror(ctx context.Context, now time.Time) {
	failed := false
	for _, a := range logic.Actuators {
		if !n.dirty[a] {
			continue
		}
		if err := n.gateway.Mirror(ctx, a, *n.state.Actuator(a)); err != nil {
			failed = true
			n.fail("mirror", err, "remote: mirror failed")
			continue
		}
		delete(n.dirty, a)
	}
	if n.motionDirty {
		if err := n.gateway.WriteMotion(ctx, n.state.Motion); err != nil {
			failed = true
			n.fail("mirror", err, "remote: motion write failed")
		} else {
			n.motionDirty = false
		}
	}
	if failed {
		n.mirrorRetryAt = now.Add(n.cfg.PullInterval)
		return
	}
	n.succeeded("mirror")
}

// flushNotifications passes queued events through the rate limiter.
// Suppressed events are dropped; failed publishes are not retried. Writes
// buffered by an offline backend are replayed by the backend itself.
func (n *Node) flushNotifications(ctx context.Context, _ time.Time) {
	for _, ev := range n.state.DrainOutbox() {
		verdict, reason := n.limiter.Submit(ev, ev.Timestamp)
		if verdict == logic.Suppressed {
			n.metrics.NotificationsSuppressed.WithLabelValues(string(ev.Kind), reason).Inc()
			log.Debug().Str("kind", string(ev.Kind)).Str("reason", reason).Str("message", ev.Message).Msg("notify: suppressed")
			continue
		}
		n.metrics.NotificationsEmitted.WithLabelValues(string(ev.Kind)).Inc()
		err := n.gateway.PublishNotification(ctx, ev)
		if errors.Is(err, datastore.ErrBuffered) {
			log.Debug().Str("kind", string(ev.Kind)).Str("message", ev.Message).Msg("notify: queued until reconnect")
			continue
		}
		if err != nil {
			n.fail("notify", err, "remote: notification lost")
			continue
		}
		n.succeeded("notify")
	}
}

func (n *Node) push(ctx context.Context, _ time.Time) {
	err := n.gateway.Push(ctx, gateway.Telemetry{
		Readings: n.state.Readings,
		Motion:   n.state.Motion,
	})
	if err != nil {
		n.fail("push", err, "remote: push failed, retrying next interval")
		return
	}
	n.succeeded("push")
}

func (n *Node) updateStatus(_ context.Context, _ time.Time) {
	connected := true
	if cs, ok := n.deps.Store.(datastore.ConnectionStatus); ok {
		connected = cs.IsConnected()
	}
	if connected {
		n.metrics.RemoteConnected.Set(1)
	} else {
		n.metrics.RemoteConnected.Set(0)
	}

	tr := n.deps.Tracker
	if tr == nil {
		return
	}
	tr.Update(n.state.Copy(), n.state.Readings, n.state.Motion, n.Ready())
	tr.SetNotifications(n.limiter.Counts())
	tr.SetRemoteConnected(connected)
	motor := n.deps.Controller.Motor()
	tr.SetMotor(status.MotorOutput{
		Drive:   motor.Drive,
		Ceiling: n.deps.Controller.Limits().Ceiling,
		Forward: motor.Forward,
		Reverse: motor.Reverse,
	})
}

// fail counts and logs a failed operation, at warn on the first failure
// and at debug while it keeps failing.
func (n *Node) fail(op string, err error, msg string) {
	n.metrics.OperationErrors.WithLabelValues(op).Inc()
	ev := log.Debug()
	if !n.failing[op] {
		ev = log.Warn()
	}
	n.failing[op] = true
	ev.Err(err).Str("op", op).Msg(msg)
}

func (n *Node) succeeded(op string) {
	if n.failing[op] {
		delete(n.failing, op)
		log.Info().Str("op", op).Msg("recovered")
	}
}
