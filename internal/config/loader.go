package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. CATALOG_STORAGE_DRIVER.
const EnvPrefix = "CATALOG"

var (
	// envVarPattern matches ${VAR} or ${VAR:-default} syntax
	envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	// simpleEnvVarPattern matches $VAR syntax
	simpleEnvVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
	logger      *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
		logger:      slog.Default().With("component", "config"),
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = append(l.searchPaths, paths...)
	return l
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, apperrors.ConfigWrap(err, op, "failed to load config file")
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, apperrors.ConfigWrap(err, "config.Load", "failed to unmarshal config")
	}
	expandEnvVars(cfg)
	return cfg, nil
}

// setDefaults sets default values using Viper.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("storage.driver", d.Storage.Driver)
	l.v.SetDefault("storage.dsn", d.Storage.DSN)
	l.v.SetDefault("storage.path", d.Storage.Path)
	l.v.SetDefault("storage.max_open_conns", d.Storage.MaxOpenConns)
	l.v.SetDefault("storage.connect_attempts", d.Storage.ConnectAttempts)
	l.v.SetDefault("storage.connect_backoff", d.Storage.ConnectBackoff)

	l.v.SetDefault("server.address", d.Server.Address)
	l.v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.rate", d.Server.RateLimit.Rate)
	l.v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)
	l.v.SetDefault("server.rate_limit.interval", d.Server.RateLimit.Interval)

	l.v.SetDefault("workflow.max_endpoint_suffix", d.Workflow.MaxEndpointSuffix)
	l.v.SetDefault("workflow.retry_attempts", d.Workflow.RetryAttempts)
	l.v.SetDefault("workflow.retry_initial_delay", d.Workflow.RetryInitialDelay)
	l.v.SetDefault("workflow.retry_max_delay", d.Workflow.RetryMaxDelay)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
}

// loadConfigFile loads the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	configFile, err := FindConfigFile(l.searchPaths...)
	if err != nil {
		// No config file found - this is OK, we use defaults
		return nil
	}
	l.v.SetConfigFile(configFile)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", configFile, err)
	}
	return nil
}

// Watch re-reads the config file whenever it changes on disk and hands the
// result to onChange. Only settings read per request (log level, rate
// limits) take effect without a restart.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

// expandEnvVars expands environment variables in sensitive configuration fields.
func expandEnvVars(cfg *Config) {
	cfg.Storage.DSN = expandEnvVar(cfg.Storage.DSN)
	cfg.Storage.Path = expandEnvVar(cfg.Storage.Path)
	for i := range cfg.Server.APIKeys {
		cfg.Server.APIKeys[i].Key = expandEnvVar(cfg.Server.APIKeys[i].Key)
	}
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = expandEnvVar(cfg.Webhooks[i].URL)
		cfg.Webhooks[i].Secret = expandEnvVar(cfg.Webhooks[i].Secret)
	}
}

// expandEnvVar expands environment variables in a string.
// Supports both ${VAR} and $VAR syntax.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}

		varName := submatch[1]
		defaultValue := ""
		if len(submatch) > 2 {
			defaultValue = submatch[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})

	result = simpleEnvVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		if value := os.Getenv(match[1:]); value != "" {
			return value
		}
		return match
	})

	return result
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// MergeConfig overrides individual keys, e.g. from CLI flags.
func (l *Loader) MergeConfig(values map[string]any) {
	for key, value := range values {
		l.v.Set(key, value)
	}
}

// WriteConfig writes cfg to path; the extension selects the format.
func WriteConfig(cfg *Config, path string) error {
	const op = "config.WriteConfig"

	v := viper.New()
	v.Set("storage", cfg.Storage)
	v.Set("server", cfg.Server)
	v.Set("workflow", cfg.Workflow)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return apperrors.ConfigWrap(err, op, "failed to write config file")
	}
	return nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}

	for _, searchPath := range searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					return configFile, nil
				}
			}
		}
	}

	return "", apperrors.NotFound("config.FindConfigFile", "no config file found")
}
