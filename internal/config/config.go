package config

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Relay    RelayConfig    `mapstructure:"relay" yaml:"relay"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// BackendConfig configures the case-analyzer API client.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"token" yaml:"token"`
	// RequestTimeout bounds the wait for response headers.
	RequestTimeout string `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// AnalysisConfig configures analysis runs.
type AnalysisConfig struct {
	// IdleTimeout fails a stream that stays silent this long; "0" disables it.
	IdleTimeout string `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	// EventBuffer is the per-subscriber progress event buffer.
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// StoreConfig configures the local draft cache.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	// BusyRetries bounds retries of writes hitting a locked database.
	BusyRetries int `mapstructure:"busy_retries" yaml:"busy_retries"`
	// RetryWait is the first backoff step; it doubles per retry.
	RetryWait string `mapstructure:"retry_wait" yaml:"retry_wait"`
}

// RelayConfig configures the progress relay server.
type RelayConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	Heartbeat   string   `mapstructure:"heartbeat" yaml:"heartbeat"`
}
