package logic

import (
	"errors"
	"testing"
)

func autoState(on bool) *ActuatorState {
	return &ActuatorState{DesiredOn: on, Mode: ModeAuto, AutoEnabled: true}
}

func TestSwitchPressEntersManualAndToggles(t *testing.T) {
	s := autoState(false)

	if mode := s.SwitchPress(); mode != ModeManual {
		t.Fatalf("expected MANUAL, got %s", mode)
	}
	if !s.DesiredOn {
		t.Error("entering manual should toggle the output on")
	}

	if mode := s.SwitchPress(); mode != ModeAuto {
		t.Fatalf("expected AUTO, got %s", mode)
	}
	if !s.DesiredOn {
		t.Error("leaving manual must not change the output")
	}
}

func TestManualPriorityOverRemote(t *testing.T) {
	s := autoState(false)
	s.SwitchPress() // MANUAL, on

	if s.ApplyRemote(false) {
		t.Error("remote command must be ignored in manual mode")
	}
	if !s.DesiredOn || s.Mode != ModeManual {
		t.Fatalf("state changed: %+v", *s)
	}

	s.SwitchPress() // back to AUTO
	if !s.ApplyRemote(false) {
		t.Error("remote command should apply once back in auto")
	}
	if s.DesiredOn {
		t.Error("expected output off")
	}
}

func TestRemoteDoesNotEnterManual(t *testing.T) {
	s := autoState(false)
	if !s.ApplyRemote(true) {
		t.Fatal("expected remote command to apply")
	}
	if s.Mode != ModeAuto {
		t.Errorf("remote command must not change mode, got %s", s.Mode)
	}
	if s.ApplyRemote(true) {
		t.Error("repeating the same command is not a change")
	}
}

func TestClearManual(t *testing.T) {
	s := autoState(false)
	if s.ClearManual() {
		t.Error("clear on auto should report no change")
	}
	s.SwitchPress()
	if !s.ClearManual() {
		t.Fatal("expected manual to clear")
	}
	if s.Mode != ModeAuto || !s.DesiredOn {
		t.Errorf("unexpected state after clear: %+v", *s)
	}
}

func TestApplyAutoRespectsMode(t *testing.T) {
	s := autoState(false)
	if !s.ApplyAuto(true) {
		t.Fatal("policy should drive an auto actuator")
	}

	s.SwitchPress() // MANUAL, off
	if s.ApplyAuto(true) {
		t.Error("policy must not drive a manual actuator")
	}
	if s.Mode != ModeManual {
		t.Error("policy must never change mode")
	}

	s = autoState(false)
	s.AutoEnabled = false
	if s.ApplyAuto(true) {
		t.Error("policy must not drive an actuator with auto disabled")
	}
}

func TestSetSpeedRejectsOutOfRange(t *testing.T) {
	s := autoState(false)
	s.Speed = 40

	for _, v := range []int{-1, 101, 255} {
		if err := s.SetSpeed(v); !errors.Is(err, ErrInvalidSpeed) {
			t.Errorf("speed %d: expected ErrInvalidSpeed, got %v", v, err)
		}
	}
	if s.Speed != 40 {
		t.Errorf("rejected speed changed state: %d", s.Speed)
	}
	if err := s.SetSpeed(100); err != nil || s.Speed != 100 {
		t.Errorf("speed 100: err=%v speed=%d", err, s.Speed)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("reverse"); err != nil || d != DirectionReverse {
		t.Errorf("reverse: got %q, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}
