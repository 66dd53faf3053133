// Command homenode runs the home automation control loop: it debounces the
// PIR and wall switches, samples the light and climate sensors, drives the
// LEDs and the motor, and keeps the dashboard datastore in sync.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/homenode/internal/actuator"
	"github.com/sweeney/homenode/internal/config"
	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/gpio"
	"github.com/sweeney/homenode/internal/logic"
	"github.com/sweeney/homenode/internal/metrics"
	"github.com/sweeney/homenode/internal/node"
	"github.com/sweeney/homenode/internal/sensor"
	"github.com/sweeney/homenode/internal/status"
	"github.com/sweeney/homenode/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "homenode.yaml", "Path to configuration file")
	printState := flag.Bool("print-state", false, "Print current inputs and sensors as JSON and exit")
	httpAddr := flag.String("http", "", `HTTP status address, overrides http.addr ("off" disables)`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	switch *httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = *httpAddr
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func setupLogging(level string, useJSON, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func run(cfg *config.Config, printState bool) error {
	inputs, err := gpio.NewRealInputs(cfg.GPIO.Pins())
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer inputs.Close()

	sampler := sensor.NewSampler(sensor.IIOSource{
		LightDevice:   cfg.Light.Device,
		ClimateDevice: cfg.Climate.Device,
	})

	if printState {
		return printCurrentState(os.Stdout, cfg, inputs, sampler, time.Now())
	}

	outputs, err := gpio.NewRealOutputs(cfg.GPIO.Pins())
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer outputs.Close()

	pwm, err := gpio.NewSysfsPWM(cfg.Motor.PWMChip, cfg.Motor.PWMChannel, cfg.Motor.PWMPeriod.Duration(), cfg.Motor.FullScale)
	if err != nil {
		return fmt.Errorf("init motor pwm: %w", err)
	}
	defer pwm.Close()

	controller := actuator.NewController(outputs, pwm, actuator.NewLimits(cfg.Motor.FullScale, cfg.Motor.MaxDrivePercent))

	backend, err := openBackend(cfg.Datastore)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer backend.Close()
	store := datastore.NewClient(backend, time.Now)

	m := metrics.New()
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m.Registry)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	n := node.New(nodeConfig(cfg), node.Deps{
		Inputs:     inputs,
		Sampler:    sampler,
		Controller: controller,
		Store:      store,
		Tracker:    tracker,
		Metrics:    m,
	}, time.Now())

	ticker := time.NewTicker(cfg.Inputs.Poll.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(n, time.Now, ticker.C, sigCh)
}

// runLoop ticks the node until a signal arrives, then shuts it down.
func runLoop(n *node.Node, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx := context.Background()
	n.Start(now())
	n.Tick(ctx, now())

	for {
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("received signal, shutting down")
			sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			err := n.Shutdown(sctx, now(), signalName(s))
			cancel()
			return err

		case <-tick:
			n.Tick(ctx, now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// openBackend selects the datastore backend named by the configuration.
func openBackend(cfg config.DatastoreConfig) (datastore.Backend, error) {
	switch cfg.Driver {
	case "mqtt":
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "homenode-" + uuid.NewString()
		}
		return datastore.NewMQTTBackend(datastore.MQTTOptions{
			Broker:          cfg.MQTT.Broker,
			ClientID:        clientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			Prefix:          cfg.MQTT.Prefix,
			ConnectAttempts: cfg.MQTT.ConnectAttempts,
			RetryInterval:   cfg.MQTT.RetryInterval.Duration(),
			BufferSize:      cfg.MQTT.BufferSize,
		}), nil
	case "sqlite":
		return datastore.OpenSQLite(cfg.SQLite.Path)
	case "memory":
		log.Warn().Msg("datastore: memory driver, dashboard changes will not persist")
		return datastore.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown datastore driver %q", cfg.Driver)
}

func nodeConfig(cfg *config.Config) node.Config {
	return node.Config{
		Poll:             cfg.Inputs.Poll.Duration(),
		MotionStability:  cfg.Inputs.MotionStability.Duration(),
		SwitchStability:  cfg.Inputs.SwitchStability.Duration(),
		LightInterval:    cfg.Light.SampleInterval.Duration(),
		LightOn:          cfg.Light.OnThreshold,
		LightMargin:      cfg.Light.Margin,
		ClimateInterval:  cfg.Climate.SampleInterval.Duration(),
		TempOn:           cfg.Climate.OnThreshold,
		TempMargin:       cfg.Climate.Hysteresis,
		MotionLEDTimeout: cfg.Motion.LEDTimeout.Duration(),
		NotifyWindow:     cfg.Notifications.Window.Duration(),
		NotifyCapacity:   cfg.Notifications.Capacity,
		MotionSpacing:    cfg.Notifications.MotionSpacing.Duration(),
		PushInterval:     cfg.Datastore.PushInterval.Duration(),
		PullInterval:     cfg.Datastore.PullInterval.Duration(),
		MotorSpeed:       cfg.Motor.DefaultSpeed,
		MotorDirection:   logic.Direction(cfg.Motor.DefaultDirection),
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:             cfg.Inputs.Poll.Duration().Milliseconds(),
		MotionStabilityMs:  cfg.Inputs.MotionStability.Duration().Milliseconds(),
		SwitchStabilityMs:  cfg.Inputs.SwitchStability.Duration().Milliseconds(),
		PushMs:             cfg.Datastore.PushInterval.Duration().Milliseconds(),
		PullMs:             cfg.Datastore.PullInterval.Duration().Milliseconds(),
		MotionLEDTimeoutMs: cfg.Motion.LEDTimeout.Duration().Milliseconds(),
		LightOnLux:         cfg.Light.OnThreshold,
		LightMarginLux:     cfg.Light.Margin,
		TempOnC:            cfg.Climate.OnThreshold,
		TempMarginC:        cfg.Climate.Hysteresis,
		MotorMaxDrive:      cfg.Motor.MaxDrivePercent,
		Datastore:          cfg.Datastore.Driver,
		Remote:             remoteAddress(cfg.Datastore),
		HTTPAddr:           cfg.HTTP.Addr,
	}
}

func remoteAddress(cfg config.DatastoreConfig) string {
	switch cfg.Driver {
	case "mqtt":
		return cfg.MQTT.Broker
	case "sqlite":
		return cfg.SQLite.Path
	}
	return ""
}

// printCurrentState reads the inputs and sensors once and writes the status
// document with every actuator at its startup state.
func printCurrentState(w io.Writer, cfg *config.Config, inputs gpio.Inputs, sampler *sensor.Sampler, now time.Time) error {
	sample, err := inputs.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}

	state := logic.NewSystemState(cfg.Motor.DefaultSpeed, logic.Direction(cfg.Motor.DefaultDirection))
	var errs []error
	if r, err := sampler.Light(now); err != nil {
		errs = append(errs, err)
	} else {
		state.Record(r)
	}
	readings, err := sampler.Climate(now)
	for _, r := range readings {
		state.Record(r)
	}
	if err != nil {
		errs = append(errs, err)
	}
	for _, f := range sensor.Faults(errors.Join(errs...)) {
		log.Warn().Err(f.Err).Str("sensor", string(f.Kind)).Msg("sensor unavailable")
	}

	tracker := status.NewTracker(now, statusConfig(cfg))
	tracker.Update(state.Copy(), state.Readings, sample.Motion, false)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	_, err = w.Write(append(status.FormatJSON(tracker.Snapshot()), '\n'))
	return err
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
