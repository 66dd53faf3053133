// Package datastore is the boundary to the remote key-value datastore shared
// with the web dashboard. Keys are hierarchical paths holding scalar leaves.
package datastore

import (
	"fmt"
	"time"

	"github.com/sweeney/homenode/internal/logic"
)

// Path addresses one leaf in the remote namespace.
type Path string

// Sensor and state leaves.
const (
	PathTemperature Path = "/sensors/temperature"
	PathHumidity    Path = "/sensors/humidity"
	PathLux         Path = "/sensors/lux"
	PathMotion      Path = "/state/motion"
	PathLastSeen    Path = "/meta/last_seen"
)

// Field is a leaf under /controls/<actuator>/.
type Field string

const (
	FieldOn          Field = "on"
	FieldSpeed       Field = "speed"
	FieldDirection   Field = "direction"
	FieldManual      Field = "manual"
	FieldAutoEnabled Field = "auto_enabled"
)

// ValueKind is the scalar type stored at a path.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
)

// Control is a typed control leaf.
type Control struct {
	Actuator logic.Actuator
	Field    Field
	Kind     ValueKind
}

// Path returns the datastore path of the control.
func (c Control) Path() Path {
	return ControlPath(c.Actuator, c.Field)
}

// ControlPath builds /controls/<actuator>/<field>.
func ControlPath(a logic.Actuator, f Field) Path {
	return Path(fmt.Sprintf("/controls/%s/%s", a, f))
}

// Controls enumerates every control leaf the node reads, in the order a pull
// applies them. Mode flags come first so that a dashboard clearing manual
// and setting on in one edit has both honored. Motor speed and direction
// only exist for the motor.
var Controls = []Control{
	{logic.ActuatorMotor, FieldManual, KindBool},
	{logic.ActuatorMotor, FieldAutoEnabled, KindBool},
	{logic.ActuatorMotor, FieldOn, KindBool},
	{logic.ActuatorMotor, FieldSpeed, KindInt},
	{logic.ActuatorMotor, FieldDirection, KindString},
	{logic.ActuatorLED1, FieldManual, KindBool},
	{logic.ActuatorLED1, FieldAutoEnabled, KindBool},
	{logic.ActuatorLED1, FieldOn, KindBool},
	{logic.ActuatorLED2, FieldManual, KindBool},
	{logic.ActuatorLED2, FieldAutoEnabled, KindBool},
	{logic.ActuatorLED2, FieldOn, KindBool},
}

// Notification fields under /notifications/<id>/.
const (
	NotificationTS      = "ts"
	NotificationType    = "type"
	NotificationActor   = "actor"
	NotificationMessage = "message"
	NotificationDetails = "details"
)

// NotificationPath builds /notifications/<unix millis>/<field>.
func NotificationPath(ts time.Time, field string) Path {
	return Path(fmt.Sprintf("/notifications/%d/%s", ts.UnixMilli(), field))
}
