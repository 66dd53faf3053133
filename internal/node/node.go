// Package node owns the system state of the home node and drives every
// subsystem from a single cooperative scheduler. Nothing in here blocks on
// I/O for longer than one datastore call, and no failure stops the loop.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/homenode/internal/actuator"
	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/gateway"
	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
	"github.com/sweeney/homenode/internal/metrics"
	"github.com/sweeney/homenode/internal/scheduler"
	"github.com/sweeney/homenode/internal/sensor"
	"github.com/sweeney/homenode/internal/status"
)

// Config holds the timing and policy parameters of the loop.
type Config struct {
	Poll            time.Duration
	MotionStability time.Duration
	SwitchStability time.Duration

	LightInterval time.Duration
	LightOn       float64
	LightMargin   float64

	ClimateInterval time.Duration
	TempOn          float64
	TempMargin      float64

	MotionLEDTimeout time.Duration

	NotifyWindow   time.Duration
	NotifyCapacity int
	MotionSpacing  time.Duration

	PushInterval   time.Duration
	PullInterval   time.Duration
	StatusInterval time.Duration // defaults to 250ms

	MotorSpeed     int
	MotorDirection logic.Direction
}

// Deps are the collaborators of the node. Tracker and Metrics are optional.
type Deps struct {
	Inputs     gpio.Inputs
	Sampler    *sensor.Sampler
	Controller *actuator.Controller
	Store      datastore.Store
	Tracker    *status.Tracker
	Metrics    *metrics.Metrics
}

// Task names, in registration order.
const (
	TaskInputs  = "inputs"
	TaskLight   = "light"
	TaskClimate = "climate"
	TaskPull    = "pull"
	TaskPolicy  = "policy"
	TaskActuate = "actuate"
	TaskMirror  = "mirror"
	TaskNotify  = "notify"
	TaskPush    = "push"
	TaskStatus  = "status"
)

// Node is owned by the control loop goroutine and is not safe for
// concurrent use. Other goroutines observe it through the status tracker.
type Node struct {
	cfg     Config
	deps    Deps
	metrics *metrics.Metrics

	state   *logic.SystemState
	sched   *scheduler.Scheduler
	gateway *gateway.Gateway
	limiter *logic.RateLimiter

	motion      *logic.Debouncer
	switches    map[logic.Actuator]*logic.Debouncer
	lightBand   *logic.Hysteresis
	tempBand    *logic.Hysteresis
	motionLight *logic.MotionLight

	dirty         map[logic.Actuator]bool
	motionDirty   bool
	mirrorRetryAt time.Time

	// failing remembers which operations are currently failing so a
	// persistent fault is logged once at warn and then at debug.
	failing map[string]bool
}

// New creates a node with every actuator in Auto mode and registers the
// subsystems on the scheduler, all due at now.
func New(cfg Config, deps Deps, now time.Time) *Node {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 250 * time.Millisecond
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	n := &Node{
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		state:   logic.NewSystemState(cfg.MotorSpeed, cfg.MotorDirection),
		sched:   scheduler.New(),
		gateway: gateway.New(deps.Store),
		limiter: logic.NewRateLimiter(cfg.NotifyWindow, cfg.NotifyCapacity),
		motion:  logic.NewDebouncer(cfg.MotionStability),
		switches: map[logic.Actuator]*logic.Debouncer{
			logic.ActuatorLED1:  logic.NewDebouncer(cfg.SwitchStability),
			logic.ActuatorLED2:  logic.NewDebouncer(cfg.SwitchStability),
			logic.ActuatorMotor: logic.NewDebouncer(cfg.SwitchStability),
		},
		lightBand:   logic.NewLightHysteresis(cfg.LightOn, cfg.LightMargin),
		tempBand:    logic.NewTemperatureHysteresis(cfg.TempOn, cfg.TempMargin),
		motionLight: logic.NewMotionLight(cfg.MotionLEDTimeout),
		dirty:       make(map[logic.Actuator]bool),
		failing:     make(map[string]bool),
	}
	n.limiter.SetMinSpacing(logic.NotifyMotion, cfg.MotionSpacing)
	n.registerTasks(now)
	return n
}

func (n *Node) registerTasks(now time.Time) {
	tasks := []scheduler.Task{
		{Name: TaskInputs, Stage: scheduler.StageInput, Interval: n.cfg.Poll, Run: n.readInputs},
		{Name: TaskLight, Stage: scheduler.StageInput, Interval: n.cfg.LightInterval, Run: n.sampleLight},
		{Name: TaskClimate, Stage: scheduler.StageInput, Interval: n.cfg.ClimateInterval, Run: n.sampleClimate},
		{Name: TaskPull, Stage: scheduler.StageInput, Interval: n.cfg.PullInterval, Run: n.pull},
		{Name: TaskPolicy, Stage: scheduler.StagePolicy, Run: n.evaluatePolicy},
		{Name: TaskActuate, Stage: scheduler.StageActuate, Run: n.actuate},
		{Name: TaskMirror, Stage: scheduler.StageOutput, Ready: n.mirrorDue, Run: n.mirror},
		{Name: TaskNotify, Stage: scheduler.StageOutput, Run: n.flushNotifications},
		{Name: TaskPush, Stage: scheduler.StageOutput, Interval: n.cfg.PushInterval, Run: n.push},
		{Name: TaskStatus, Stage: scheduler.StageOutput, Interval: n.cfg.StatusInterval, Run: n.updateStatus},
	}
	for _, t := range tasks {
		n.sched.Add(t, now)
	}
}

// Start queues the startup notification. The first tick publishes it.
func (n *Node) Start(now time.Time) {
	lim := n.deps.Controller.Limits()
	n.state.Notify(logic.NotifySystem, "node", "node started", now, map[string]any{
		"event":         "startup",
		"motor_ceiling": lim.Ceiling,
		"full_scale":    lim.FullScale,
	})
	log.Info().
		Dur("poll", n.cfg.Poll).
		Float64("light_on", n.cfg.LightOn).
		Float64("temp_on", n.cfg.TempOn).
		Int("motor_ceiling", lim.Ceiling).
		Msg("node: started")
}

// Tick runs every subsystem that is due and returns the names of those that ran.
func (n *Node) Tick(ctx context.Context, now time.Time) []string {
	started := time.Now()
	ran := n.sched.Tick(ctx, now)
	n.metrics.TickDuration.Observe(time.Since(started).Seconds())
	return ran
}

// NextDue returns when the earliest subsystem is next due.
func (n *Node) NextDue() time.Time {
	return n.sched.NextDue()
}

// Runs returns how many times the named subsystem has run.
func (n *Node) Runs(task string) int {
	return n.sched.Runs(task)
}

// State exposes the system state to the loop owner.
func (n *Node) State() *logic.SystemState {
	return n.state
}

// Ready reports whether every digital input has settled to a baseline.
func (n *Node) Ready() bool {
	if !n.motion.IsBaselined() {
		return false
	}
	for _, d := range n.switches {
		if !d.IsBaselined() {
			return false
		}
	}
	return true
}

// Shutdown publishes the shutdown notification, flushes pending mirror
// writes and turns every output off.
func (n *Node) Shutdown(ctx context.Context, now time.Time, reason string) error {
	log.Info().Str("reason", reason).Msg("node: shutting down")
	n.state.Notify(logic.NotifySystem, "node", "node stopping", now, map[string]any{
		"event":  "shutdown",
		"reason": reason,
	})
	n.flushNotifications(ctx, now)
	if n.mirrorPending() {
		n.mirror(ctx, now)
	}

	var errs []error
	if err := n.deps.Controller.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop outputs: %w", err))
	}
	n.updateStatus(ctx, now)
	return errors.Join(errs...)
}
