package protocol

// LoggingLevel maps to syslog message severities as described in RFC-5424:
// https://datatracker.ietf.org/doc/html/rfc5424#section-6.2.1
type LoggingLevel string

const (
	LogLevelDebug     LoggingLevel = "debug"
	LogLevelInfo      LoggingLevel = "info"
	LogLevelNotice    LoggingLevel = "notice"
	LogLevelWarning   LoggingLevel = "warning"
	LogLevelError     LoggingLevel = "error"
	LogLevelCritical  LoggingLevel = "critical"
	LogLevelAlert     LoggingLevel = "alert"
	LogLevelEmergency LoggingLevel = "emergency"
)

var loggingLevelSeverity = map[LoggingLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// ShouldLog reports whether a message at level should be delivered to a
// client that requested minLevel or more severe
func ShouldLog(level, minLevel LoggingLevel) bool {
	sev, ok := loggingLevelSeverity[level]
	if !ok {
		return false
	}
	minSev, ok := loggingLevelSeverity[minLevel]
	if !ok {
		return false
	}
	return sev >= minSev
}

// SetLoggingLevelParams logging/setLevel request parameters
type SetLoggingLevelParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	// The minimum level of log messages the client wants to receive
	Level LoggingLevel `json:"level"`
}

// LoggingMessageParams notifications/message parameters
type LoggingMessageParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	// The data to log, such as a string message or an object.
	// Any JSON serializable type is allowed.
	Data any `json:"data"`
	// The severity of this log message
	Level LoggingLevel `json:"level"`
	// An optional name of the logger issuing this message
	Logger string `json:"logger,omitempty"`
}
