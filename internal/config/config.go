package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	State    StateConfig    `mapstructure:"state"`
	Report   ReportConfig   `mapstructure:"report"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig configures policy loading.
type PolicyConfig struct {
	Path   string `mapstructure:"path"`
	Reload bool   `mapstructure:"reload"`
}

// WatchdogConfig configures the periodic detection loop.
type WatchdogConfig struct {
	Interval    string `mapstructure:"interval"`
	Parallelism int    `mapstructure:"parallelism"`
}

// IntervalDuration parses the tick interval. Validation guarantees the
// string parses; a zero value falls back to the watchdog default.
func (c WatchdogConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0
	}
	return d
}

// StateConfig configures ledger persistence.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// AlertConfig configures alert delivery.
type AlertConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

// TimeoutDuration parses the delivery timeout, zero when unset or invalid.
func (c AlertConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}
