package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SysfsPWM drives one hardware PWM channel through /sys/class/pwm.
// go-gpiocdev only covers digital lines, so the motor drive level goes
// through the kernel PWM interface.
type SysfsPWM struct {
	dir       string
	period    time.Duration
	fullScale int
}

// NewSysfsPWM exports channel on chip (e.g. "/sys/class/pwm/pwmchip0", 0),
// sets the period and enables the output at zero duty.
func NewSysfsPWM(chip string, channel int, period time.Duration, fullScale int) (*SysfsPWM, error) {
	dir := filepath.Join(chip, fmt.Sprintf("pwm%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chip, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm%d: %w", channel, err)
		}
	}
	p := &SysfsPWM{dir: dir, period: period, fullScale: fullScale}

	if err := writeSysfs(filepath.Join(dir, "duty_cycle"), "0"); err != nil {
		return nil, fmt.Errorf("reset duty: %w", err)
	}
	if err := writeSysfs(filepath.Join(dir, "period"), strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return nil, fmt.Errorf("set period: %w", err)
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("enable pwm: %w", err)
	}
	return p, nil
}

// SetDrive sets the duty cycle as level/fullScale of the period.
func (p *SysfsPWM) SetDrive(level int) error {
	if level < 0 || level > p.fullScale {
		return fmt.Errorf("drive level %d outside [0,%d]", level, p.fullScale)
	}
	duty := p.period.Nanoseconds() * int64(level) / int64(p.fullScale)
	if err := writeSysfs(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(duty, 10)); err != nil {
		return fmt.Errorf("set duty: %w", err)
	}
	return nil
}

// Close zeroes and disables the channel.
func (p *SysfsPWM) Close() error {
	if err := writeSysfs(filepath.Join(p.dir, "duty_cycle"), "0"); err != nil {
		return fmt.Errorf("zero duty: %w", err)
	}
	return writeSysfs(filepath.Join(p.dir, "enable"), "0")
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
