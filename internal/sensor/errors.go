package sensor

import "codeberg.org/mutker/stressberry/internal/errors"

const (
	ErrSensorUnavailable = errors.ErrSensorUnavailable

	ErrUnknownSource   = errors.ErrorCode("sensor_unknown_source")
	ErrUnexpectedValue = errors.ErrorCode("sensor_unexpected_output")
)

// unavailable wraps a read failure so that callers only need to test for
// ErrSensorUnavailable, while the underlying cause stays reachable.
func unavailable(source string, err error) error {
	return errors.New().Wrap(ErrSensorUnavailable, err).WithMessage("Sensor unavailable (" + source + ")")
}
