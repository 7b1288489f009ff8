package errors

// ErrorCode classifies a failure. Codes shared across packages live in
// codes.go; packages alias them or declare their own in errors.go.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Error is a coded error with optional context data. Two Errors match under
// Is when their codes are equal.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors; obtain one with New().
type Factory interface {
	New(code ErrorCode) Error
	// Wrap keeps err reachable through Unwrap.
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
