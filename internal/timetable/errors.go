package timetable

import "errors"

// ConfigError aborts a run before search starts: the school has no usable
// calendar or no demand to schedule.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "timetable configuration: " + e.Reason
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// ErrOccupancyViolation is returned when the final entry set double-books a
// teacher, room or section. It indicates a tracker bug, never bad input.
var ErrOccupancyViolation = errors.New("timetable occupancy violation")
