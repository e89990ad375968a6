// Package config resolves claimledger settings.
//
// Precedence, highest first: command-line flags, CLAIMLEDGER_* environment
// variables, the YAML config file, built-in defaults. Nested keys map to
// environment variables with "_" for ".", e.g. CLAIMLEDGER_AUTH_MODE.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "CLAIMLEDGER"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Auth modes.
const (
	AuthJWT        = "jwt"
	AuthKeyring    = "keyring"
	AuthJWTKeyring = "jwt+keyring"
	AuthAllowList  = "allowlist"
	AuthInsecure   = "insecure"
)

var (
	validBackends  = []string{BackendSQLite, BackendBadger, BackendMemory}
	validAuthModes = []string{AuthJWT, AuthKeyring, AuthJWTKeyring, AuthAllowList, AuthInsecure}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config is the effective configuration.
type Config struct {
	Backend    string      `mapstructure:"backend" json:"backend" yaml:"backend"`
	Database   string      `mapstructure:"database" json:"database" yaml:"database"`
	BadgerDir  string      `mapstructure:"badger_dir" json:"badger_dir" yaml:"badger_dir"`
	PolicyFile string      `mapstructure:"policy_file" json:"policy_file" yaml:"policy_file"`
	Auth       AuthConfig  `mapstructure:"auth" json:"auth" yaml:"auth"`
	HTTP       HTTPConfig  `mapstructure:"http" json:"http" yaml:"http"`
	Log        LogConfig   `mapstructure:"log" json:"log" yaml:"log"`
	Trace      TraceConfig `mapstructure:"trace" json:"trace" yaml:"trace"`
}

// AuthConfig selects and configures the identity verifier.
type AuthConfig struct {
	Mode        string        `mapstructure:"mode" json:"mode" yaml:"mode"`
	JWTSecret   string        `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" json:"jwt_issuer" yaml:"jwt_issuer"`
	JWTLeeway   time.Duration `mapstructure:"jwt_leeway" json:"jwt_leeway" yaml:"jwt_leeway"`
	KeyringFile string        `mapstructure:"keyring_file" json:"keyring_file" yaml:"keyring_file"`
	Allow       []string      `mapstructure:"allow" json:"allow" yaml:"allow"`
}

// HTTPConfig configures `claimledger serve`.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	RateLimit       float64       `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// TraceConfig configures OpenTelemetry export.
type TraceConfig struct {
	Stdout bool `mapstructure:"stdout" json:"stdout" yaml:"stdout"`
}

// SetDefaults registers every key's default on v. Keys must be known to v
// for AutomaticEnv to reach them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("database", "claimledger.db")
	v.SetDefault("badger_dir", "claimledger.badger")
	v.SetDefault("policy_file", "")

	v.SetDefault("auth.mode", AuthJWTKeyring)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "claimledger")
	v.SetDefault("auth.jwt_leeway", 30*time.Second)
	v.SetDefault("auth.keyring_file", "")
	v.SetDefault("auth.allow", []string{})

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.rate_limit", 10.0)
	v.SetDefault("http.rate_burst", 20)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("trace.stdout", false)
}

// Default returns the built-in defaults.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// DefaultPath is $HOME/.claimledger/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".claimledger", "config.yaml"), nil
}

// Prepare wires defaults, environment and the config file into v. file may
// be empty, in which case the default path is tried and a missing file is
// not an error. It returns the config file actually read, if any.
func Prepare(v *viper.Viper, file string) (string, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("read config %s: %w", file, err)
		}
		return v.ConfigFileUsed(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	v.AddConfigPath(filepath.Join(home, ".claimledger"))
	v.SetConfigType("yaml")
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Decode unmarshals v and validates the result.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is Prepare followed by Decode on a fresh viper instance.
func Load(file string) (Config, string, error) {
	v := viper.New()
	used, err := Prepare(v, file)
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := Decode(v)
	return cfg, used, err
}

// Validate checks enumerations and the settings each mode depends on.
// Mode-specific requirements are only enforced when that mode is chosen.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(validBackends, c.Backend) {
		errs = append(errs, fmt.Errorf("backend %q: must be one of %v", c.Backend, validBackends))
	}
	if c.Backend == BackendSQLite && c.Database == "" {
		errs = append(errs, errors.New("database: required for the sqlite backend"))
	}
	if c.Backend == BackendBadger && c.BadgerDir == "" {
		errs = append(errs, errors.New("badger_dir: required for the badger backend"))
	}
	if !slices.Contains(validAuthModes, c.Auth.Mode) {
		errs = append(errs, fmt.Errorf("auth.mode %q: must be one of %v", c.Auth.Mode, validAuthModes))
	}
	if !slices.Contains(validLogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q: must be one of %v", c.Log.Level, validLogLevels))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("http.rate_limit and http.rate_burst must be positive"))
	}
	return errors.Join(errs...)
}

// UsesJWT reports whether the auth mode accepts bearer tokens.
func (a AuthConfig) UsesJWT() bool {
	return a.Mode == AuthJWT || a.Mode == AuthJWTKeyring
}

// UsesKeyring reports whether the auth mode accepts API keys.
func (a AuthConfig) UsesKeyring() bool {
	return a.Mode == AuthKeyring || a.Mode == AuthJWTKeyring
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = "<redacted>"
	}
	c.Auth.Allow = slices.Clone(c.Auth.Allow)
	return c
}
