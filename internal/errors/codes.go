package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidDuration ErrorCode = "invalid_duration"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Measurement errors
	ErrSensorUnavailable ErrorCode = "sensor_unavailable"
	ErrMissingDependency ErrorCode = "missing_dependency"
	ErrInvalidSensorType ErrorCode = "invalid_sensor_type"

	// Load errors
	ErrLoadTool        ErrorCode = "load_tool_failed"
	ErrLoadToolMissing ErrorCode = "load_tool_missing"
	ErrInvalidLoadKind ErrorCode = "invalid_load_kind"

	// Application errors
	ErrRunFailed   ErrorCode = "run_failed"
	ErrWriteReport ErrorCode = "write_report_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"

	// Metrics errors
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidDuration:   "Invalid duration value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrSensorUnavailable: "Sensor unavailable",
	ErrMissingDependency: "Missing dependency",
	ErrInvalidSensorType: "Invalid ambient temperature sensor",
	ErrLoadTool:          "Load tool exited with an error",
	ErrLoadToolMissing:   "Load tool not found",
	ErrInvalidLoadKind:   "Invalid load kind",
	ErrRunFailed:         "Stress test failed",
	ErrWriteReport:       "Failed to write results",
	ErrTimeout:           "Operation timed out",
	ErrInitMetrics:       "Failed to initialize metrics",
	ErrCollectMetrics:    "Failed to collect metrics data",
	ErrCloseMetrics:      "Failed to close metrics connection",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
