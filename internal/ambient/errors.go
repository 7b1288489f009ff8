package ambient

import "codeberg.org/mutker/stressberry/internal/errors"

const (
	ErrMissingDependency = errors.ErrMissingDependency
	ErrInvalidSensorType = errors.ErrInvalidSensorType

	ErrReadFailed = errors.ErrorCode("ambient_read_failed")
)
