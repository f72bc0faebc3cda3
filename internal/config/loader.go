package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values shared by the loader and the sample file.
const (
	DefaultBaseURL        = "http://localhost:8000/api"
	DefaultRequestTimeout = "30s"
	DefaultIdleTimeout    = "5m"
	DefaultStorePath      = ".caseanalyzer/drafts.db"
	DefaultBusyRetries    = 5
	DefaultRetryWait      = "100ms"
	DefaultRelayPort      = 8090
	DefaultHeartbeat      = "15s"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CASEANALYZER",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CASEANALYZER",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CASEANALYZER_*)
// 3. Project config (.caseanalyzer.yaml in current directory)
// 4. User config (~/.config/caseanalyzer/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".caseanalyzer")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "caseanalyzer"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("backend.base_url", DefaultBaseURL)
	l.v.SetDefault("backend.request_timeout", DefaultRequestTimeout)

	l.v.SetDefault("analysis.idle_timeout", DefaultIdleTimeout)
	l.v.SetDefault("analysis.event_buffer", 256)

	l.v.SetDefault("store.enabled", true)
	l.v.SetDefault("store.path", DefaultStorePath)
	l.v.SetDefault("store.busy_retries", DefaultBusyRetries)
	l.v.SetDefault("store.retry_wait", DefaultRetryWait)

	l.v.SetDefault("relay.host", "127.0.0.1")
	l.v.SetDefault("relay.port", DefaultRelayPort)
	l.v.SetDefault("relay.cors_origins", []string{"http://localhost:5173"})
	l.v.SetDefault("relay.heartbeat", DefaultHeartbeat)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// Duration parses a duration setting, treating "" and "0" as zero.
func Duration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// MustDuration is Duration for values already checked by the validator.
func MustDuration(s string) time.Duration {
	d, _ := Duration(s)
	return d
}
