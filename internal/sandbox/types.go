package sandbox

import "time"

// Config defines sandbox execution limits.
type Config struct {
	Timeout       time.Duration // Per-script execution timeout
	EnableConsole bool          // Allow console.log/warn/error
}

// DefaultConfig returns the default execution limits.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		EnableConsole: true,
	}
}

// Result holds the outcome of executing one script.
type Result struct {
	ScriptID string
	Value    interface{}
	Console  []LogEntry
	Duration time.Duration
	Error    error
}

// LogEntry represents captured console output.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}
