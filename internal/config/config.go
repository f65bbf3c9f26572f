package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	appErrors "upder/internal/errors"
)

const (
	KeyHome       = "home"
	KeyConfigHome = "config-home"
	KeyDataHome   = "data-home"
	KeySearchPath = "path"

	KeyReleaseHost    = "release.host"
	KeyConnectTimeout = "fetch.connect-timeout"
	KeyMaxRedirects   = "fetch.max-redirects"
	KeyChunkSize      = "fetch.chunk-size"
	KeyScheduleExec   = "schedule.exec"
	KeyHistoryEnabled = "history.enabled"
	KeyHistoryPath    = "history.path"
	KeyDebug          = "debug"
)

const (
	// DefaultReleaseHost serves the language server's nightly builds.
	DefaultReleaseHost = "https://github.com"
	// DefaultConnectTimeout bounds the connection phase of a download.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultMaxRedirects is the redirect budget of a download.
	DefaultMaxRedirects = 10
	// DefaultChunkSize is the download read buffer size.
	DefaultChunkSize = 64 * 1024

	appName   = "upder"
	envPrefix = "UPDER"
)

// Config is the resolved runtime configuration. Every component receives the
// values it needs from here instead of reading the environment itself.
type Config struct {
	Home       string
	ConfigHome string
	DataHome   string
	SearchPath string

	ReleaseHost    string        `validate:"required,url"`
	ConnectTimeout time.Duration `validate:"gt=0"`
	MaxRedirects   int           `validate:"gte=0,lte=10"`
	ChunkSize      int           `validate:"gte=1024"`

	ScheduleExec   string
	HistoryEnabled bool
	HistoryPath    string
	Debug          bool
}

// InstallDir is where downloaded binaries are placed, or "" when the home
// directory is unknown.
func (c *Config) InstallDir() string {
	if strings.TrimSpace(c.Home) == "" {
		return ""
	}
	return filepath.Join(c.Home, ".local", "bin")
}

// DataDir holds the history database and debug log.
func (c *Config) DataDir() string {
	if dataHome := strings.TrimSpace(c.DataHome); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}
	if strings.TrimSpace(c.Home) == "" {
		return ""
	}
	return filepath.Join(c.Home, ".local", "share", appName)
}

// HistoryDBPath returns the configured ledger path or its default inside DataDir.
func (c *Config) HistoryDBPath() string {
	if path := strings.TrimSpace(c.HistoryPath); path != "" {
		return path
	}
	if dir := c.DataDir(); dir != "" {
		return filepath.Join(dir, "history.db")
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return appErrors.New(appErrors.CodeConfigurationError,
			fmt.Sprintf("invalid %s %v: must satisfy %s", fe.Field(), fe.Value(), fieldRule(fe)), err)
	}
	return appErrors.New(appErrors.CodeConfigurationError, "validate config", err)
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

type initSettings struct {
	userConfigPath string
	flags          *pflag.FlagSet
}

// Option configures Load. Useful for tests to override paths.
type Option func(*initSettings)

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

// WithFlags binds command-line flags that share a name with a config key.
// Flags only override other sources when explicitly set.
func WithFlags(flags *pflag.FlagSet) Option {
	return func(cfg *initSettings) {
		cfg.flags = flags
	}
}

// Load resolves configuration using the precedence:
// defaults < user config < environment variables < flags.
func Load(opts ...Option) (*Config, error) {
	settings := initSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindStandardEnv(v); err != nil {
		return nil, err
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		userConfigPath = defaultUserConfigPath(v.GetString(KeyHome))
	}
	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return nil, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("load user config: %v", err), err)
	}

	if settings.flags != nil {
		if err := bindFlags(v, settings.flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Home:           strings.TrimSpace(v.GetString(KeyHome)),
		ConfigHome:     strings.TrimSpace(v.GetString(KeyConfigHome)),
		DataHome:       strings.TrimSpace(v.GetString(KeyDataHome)),
		SearchPath:     v.GetString(KeySearchPath),
		ReleaseHost:    strings.TrimSpace(v.GetString(KeyReleaseHost)),
		ConnectTimeout: v.GetDuration(KeyConnectTimeout),
		MaxRedirects:   v.GetInt(KeyMaxRedirects),
		ChunkSize:      v.GetInt(KeyChunkSize),
		ScheduleExec:   strings.TrimSpace(v.GetString(KeyScheduleExec)),
		HistoryEnabled: v.GetBool(KeyHistoryEnabled),
		HistoryPath:    strings.TrimSpace(v.GetString(KeyHistoryPath)),
		Debug:          v.GetBool(KeyDebug),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindStandardEnv maps the XDG and POSIX variables onto config keys. An
// UPDER_-prefixed variable still wins over the standard one.
func bindStandardEnv(v *viper.Viper) error {
	bindings := map[string]string{
		KeyHome:       "HOME",
		KeyConfigHome: "XDG_CONFIG_HOME",
		KeyDataHome:   "XDG_DATA_HOME",
		KeySearchPath: "PATH",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, envKey(key), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{KeyDebug, KeyReleaseHost, KeyScheduleExec} {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

func envKey(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return envPrefix + "_" + strings.ToUpper(replacer.Replace(key))
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads the user config file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath(home string) string {
	if strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, "."+appName, "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyReleaseHost, DefaultReleaseHost)
	v.SetDefault(KeyConnectTimeout, DefaultConnectTimeout)
	v.SetDefault(KeyMaxRedirects, DefaultMaxRedirects)
	v.SetDefault(KeyChunkSize, DefaultChunkSize)
	v.SetDefault(KeyScheduleExec, "")
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryPath, "")
	v.SetDefault(KeyDebug, false)
}
