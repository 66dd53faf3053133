package actuator

import "fmt"

// FakeDrive records drive levels for test assertions.
type FakeDrive struct {
	FullScale int
	Level     int
	History   []int

	// DriveError, if set, will be returned by SetDrive.
	DriveError error
}

// SetDrive records the level.
func (f *FakeDrive) SetDrive(level int) error {
	if f.DriveError != nil {
		return f.DriveError
	}
	if f.FullScale > 0 && (level < 0 || level > f.FullScale) {
		return fmt.Errorf("drive level %d outside [0,%d]", level, f.FullScale)
	}
	f.Level = level
	f.History = append(f.History, level)
	return nil
}
