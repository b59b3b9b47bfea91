package app

// StopReason labels why the process is shutting down. It only feeds logs.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopRequested  StopReason = "requested"
)
