// Package gateway synchronizes local state with the remote datastore shared
// with the dashboard. It pushes telemetry, pulls control deltas, mirrors local
// actuator changes back and publishes notifications.
//
// The gateway remembers the last value it saw or wrote at every control path.
// A pulled value only becomes a command when it differs from that memory, so
// the node's own mirrored writes are never mistaken for dashboard commands.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/logic"
)

// Command is one dashboard-originated control change. Only the field matching
// the control's value kind is set.
type Command struct {
	Actuator logic.Actuator
	Field    datastore.Field
	Bool     bool
	Int      int
	Text     string
}

func (c Command) String() string {
	switch c.Field {
	case datastore.FieldSpeed:
		return fmt.Sprintf("%s.%s=%d", c.Actuator, c.Field, c.Int)
	case datastore.FieldDirection:
		return fmt.Sprintf("%s.%s=%s", c.Actuator, c.Field, c.Text)
	}
	return fmt.Sprintf("%s.%s=%t", c.Actuator, c.Field, c.Bool)
}

// Telemetry is the sensor snapshot written on each push.
type Telemetry struct {
	Readings map[logic.SensorKind]logic.SensorReading
	Motion   bool
}

// Gateway is owned by the control loop and is not safe for concurrent use.
type Gateway struct {
	store datastore.Store
	known map[datastore.Path]string

	lastNotification time.Time
}

// New creates a gateway over store.
func New(store datastore.Store) *Gateway {
	return &Gateway{
		store: store,
		known: make(map[datastore.Path]string),
	}
}

// Pull reads every control path and returns the values that changed since the
// last pull or mirror. A path that does not exist is skipped. Other read
// failures leave the path unchanged and are returned joined; an offline store
// aborts the pull at the first read.
func (g *Gateway) Pull(ctx context.Context) ([]Command, error) {
	var cmds []Command
	var errs []error
	for _, c := range datastore.Controls {
		cmd, raw, err := g.read(ctx, c)
		if errors.Is(err, datastore.ErrNotFound) {
			continue
		}
		if errors.Is(err, datastore.ErrOffline) {
			return cmds, err
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p := c.Path()
		if prev, ok := g.known[p]; ok && prev == raw {
			continue
		}
		g.known[p] = raw
		cmds = append(cmds, cmd)
	}
	return cmds, errors.Join(errs...)
}

func (g *Gateway) read(ctx context.Context, c datastore.Control) (Command, string, error) {
	cmd := Command{Actuator: c.Actuator, Field: c.Field}
	p := c.Path()
	switch c.Kind {
	case datastore.KindBool:
		v, err := g.store.ReadBool(ctx, p)
		if err != nil {
			return cmd, "", err
		}
		cmd.Bool = v
		return cmd, strconv.FormatBool(v), nil
	case datastore.KindInt:
		v, err := g.store.ReadInt(ctx, p)
		if err != nil {
			return cmd, "", err
		}
		cmd.Int = v
		return cmd, strconv.Itoa(v), nil
	case datastore.KindString:
		v, err := g.store.ReadString(ctx, p)
		if err != nil {
			return cmd, "", err
		}
		cmd.Text = v
		return cmd, v, nil
	}
	return cmd, "", fmt.Errorf("control %s: unsupported kind %d", p, c.Kind)
}

// Mirror writes the local state of actuator a to its control paths. Paths
// already holding the value are skipped. A path is only remembered once its
// write succeeded, so a failed mirror is retried in full by the next call.
func (g *Gateway) Mirror(ctx context.Context, a logic.Actuator, st logic.ActuatorState) error {
	var errs []error
	write := func(f datastore.Field, raw string, w func(datastore.Path) error) {
		p := datastore.ControlPath(a, f)
		if prev, ok := g.known[p]; ok && prev == raw {
			return
		}
		if err := w(p); err != nil {
			errs = append(errs, err)
			return
		}
		g.known[p] = raw
	}
	writeBool := func(f datastore.Field, v bool) {
		write(f, strconv.FormatBool(v), func(p datastore.Path) error {
			return g.store.WriteBool(ctx, p, v)
		})
	}

	writeBool(datastore.FieldOn, st.DesiredOn)
	writeBool(datastore.FieldManual, st.Mode == logic.ModeManual)
	writeBool(datastore.FieldAutoEnabled, st.AutoEnabled)
	if a == logic.ActuatorMotor {
		write(datastore.FieldSpeed, strconv.Itoa(st.Speed), func(p datastore.Path) error {
			return g.store.WriteInt(ctx, p, st.Speed)
		})
		write(datastore.FieldDirection, string(st.Direction), func(p datastore.Path) error {
			return g.store.WriteString(ctx, p, string(st.Direction))
		})
	}
	return errors.Join(errs...)
}

// WriteMotion publishes the debounced motion state.
func (g *Gateway) WriteMotion(ctx context.Context, motion bool) error {
	return g.store.WriteBool(ctx, datastore.PathMotion, motion)
}

// Push writes every valid sensor reading, the motion state and the liveness
// timestamp. Every write is attempted; failures are returned joined.
func (g *Gateway) Push(ctx context.Context, t Telemetry) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if r, ok := t.Readings[logic.SensorTemperature]; ok && r.Valid() {
		add(g.store.WriteFloat(ctx, datastore.PathTemperature, r.Value))
	}
	if r, ok := t.Readings[logic.SensorHumidity]; ok && r.Valid() {
		add(g.store.WriteFloat(ctx, datastore.PathHumidity, r.Value))
	}
	if r, ok := t.Readings[logic.SensorLight]; ok && r.Valid() {
		add(g.store.WriteInt(ctx, datastore.PathLux, int(math.Round(r.Value))))
	}
	add(g.store.WriteBool(ctx, datastore.PathMotion, t.Motion))
	add(g.store.WriteTimestamp(ctx, datastore.PathLastSeen))
	return errors.Join(errs...)
}

// PublishNotification writes ev under /notifications/<id>/. The id is the
// event time in unix milliseconds, bumped forward when it would collide with
// the previous notification. Details are stored as a JSON string carrying a
// random event id for dashboard de-duplication.
func (g *Gateway) PublishNotification(ctx context.Context, ev logic.NotificationEvent) error {
	id := ev.Timestamp.Truncate(time.Millisecond)
	if !id.After(g.lastNotification) {
		id = g.lastNotification.Add(time.Millisecond)
	}
	g.lastNotification = id

	detail := make(map[string]any, len(ev.Detail)+1)
	for k, v := range ev.Detail {
		detail[k] = v
	}
	detail["event_id"] = uuid.NewString()
	details, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode notification details: %w", err)
	}

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(g.store.WriteString(ctx, datastore.NotificationPath(id, datastore.NotificationTS), strconv.FormatInt(ev.Timestamp.UnixMilli(), 10)))
	add(g.store.WriteString(ctx, datastore.NotificationPath(id, datastore.NotificationType), string(ev.Kind)))
	add(g.store.WriteString(ctx, datastore.NotificationPath(id, datastore.NotificationActor), ev.Actor))
	add(g.store.WriteString(ctx, datastore.NotificationPath(id, datastore.NotificationMessage), ev.Message))
	add(g.store.WriteString(ctx, datastore.NotificationPath(id, datastore.NotificationDetails), string(details)))
	return errors.Join(errs...)
}
