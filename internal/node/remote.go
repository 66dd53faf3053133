package node

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/homenode/internal/datastore"
	"github.com/sweeney/homenode/internal/gateway"
	"github.com/sweeney/homenode/internal/logic"
)

// Reasons a dashboard command is not applied.
const (
	rejectManual  = "manual"
	rejectInvalid = "invalid"
	rejectSwitch  = "switch_only"
)

// pull applies dashboard changes. Read failures leave local state as is.
func (n *Node) pull(ctx context.Context, now time.Time) {
	cmds, err := n.gateway.Pull(ctx)
	for _, cmd := range cmds {
		n.applyCommand(cmd, now)
	}
	if err != nil {
		n.fail("pull", err, "remote: pull failed, keeping local state")
		return
	}
	n.succeeded("pull")
}

// applyCommand routes one dashboard change through the arbiter. A rejected
// command marks the actuator for mirroring so the dashboard is corrected
// back to the local truth.
func (n *Node) applyCommand(cmd gateway.Command, now time.Time) {
	a := cmd.Actuator
	st := n.state.Actuator(a)
	if st == nil {
		return
	}

	switch cmd.Field {
	case datastore.FieldOn:
		if st.Mode == logic.ModeManual {
			n.reject(cmd, rejectManual, nil)
			return
		}
		if st.ApplyRemote(cmd.Bool) {
			n.changed(a, logic.SourceRemote)
			n.remoteNotify(a, fmt.Sprintf("%s turned %s from the dashboard", a, logic.StateOf(cmd.Bool)), now, cmd)
		}

	case datastore.FieldManual:
		if cmd.Bool {
			if st.Mode != logic.ModeManual {
				n.reject(cmd, rejectSwitch, nil)
			}
			return
		}
		if st.ClearManual() {
			n.resync(a, now)
			n.changed(a, logic.SourceRemote)
			n.remoteNotify(a, fmt.Sprintf("%s returned to automatic control from the dashboard", a), now, cmd)
		}

	case datastore.FieldAutoEnabled:
		if st.AutoEnabled == cmd.Bool {
			return
		}
		st.AutoEnabled = cmd.Bool
		if cmd.Bool {
			n.resync(a, now)
		}
		n.changed(a, logic.SourceRemote)
		verb := "disabled"
		if cmd.Bool {
			verb = "enabled"
		}
		n.remoteNotify(a, fmt.Sprintf("automatic control of %s %s", a, verb), now, cmd)

	case datastore.FieldSpeed:
		if st.Speed == cmd.Int {
			return
		}
		if err := st.SetSpeed(cmd.Int); err != nil {
			n.reject(cmd, rejectInvalid, err)
			return
		}
		n.changed(a, logic.SourceRemote)
		n.remoteNotify(a, fmt.Sprintf("%s speed set to %d%%", a, cmd.Int), now, cmd)

	case datastore.FieldDirection:
		dir, err := logic.ParseDirection(cmd.Text)
		if err != nil {
			n.reject(cmd, rejectInvalid, err)
			return
		}
		if st.Direction == dir {
			return
		}
		st.Direction = dir
		n.changed(a, logic.SourceRemote)
		n.remoteNotify(a, fmt.Sprintf("%s direction set to %s", a, dir), now, cmd)
	}
}

func (n *Node) remoteNotify(a logic.Actuator, msg string, now time.Time, cmd gateway.Command) {
	st := n.state.Actuator(a)
	n.state.Notify(logic.NotifyRemote, "dashboard", msg, now, map[string]any{
		"actuator": string(a),
		"field":    string(cmd.Field),
		"on":       st.DesiredOn,
		"mode":     string(st.Mode),
	})
	log.Info().Stringer("command", cmd).Msg("remote: command applied")
}

// reject leaves local state unchanged and schedules a corrective mirror.
// Invalid values are configuration errors and log at warn; commands held
// off by manual mode are routine and log at info.
func (n *Node) reject(cmd gateway.Command, reason string, err error) {
	n.dirty[cmd.Actuator] = true
	n.metrics.RejectedCommands.WithLabelValues(string(cmd.Field), reason).Inc()
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Stringer("command", cmd).Str("reason", reason).Msg("remote: command rejected")
}
