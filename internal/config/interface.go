package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// TelemetryConfig locates the per-tick CSV log
type TelemetryConfig struct {
	File string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables
// it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
