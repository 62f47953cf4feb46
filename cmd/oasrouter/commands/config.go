package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erraggy/oasrouter/router"
)

// Config is the command configuration.
type Config struct {
	Spec            string         `mapstructure:"spec"`
	Listen          string         `mapstructure:"listen"`
	Strict          bool           `mapstructure:"strict"`
	Development     bool           `mapstructure:"development"`
	Echo            bool           `mapstructure:"echo"`
	MaxBodySize     int64          `mapstructure:"max_body_size"`
	LogLevel        string         `mapstructure:"log_level"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig     `mapstructure:"cors"`
	Security        SecurityConfig `mapstructure:"security"`
}

// CORSConfig mirrors router.CORSConfig.
type CORSConfig struct {
	Origin  string            `mapstructure:"origin"`
	Headers map[string]string `mapstructure:"headers"`
}

// SecurityConfig enables the built-in handlers for the contract's security
// schemes. Maps are keyed by scheme name; scheme names match
// case-insensitively because config keys are case-insensitive.
type SecurityConfig struct {
	// APIKeys lists the accepted keys of apiKey schemes
	APIKeys map[string][]string `mapstructure:"api_keys"`
	// JWT configures HMAC-signed tokens for http bearer schemes
	JWT map[string]JWTConfig `mapstructure:"jwt"`
	// Basic lists the accepted users of http basic schemes
	Basic map[string][]BasicUser `mapstructure:"basic"`
}

// JWTConfig configures one bearer scheme.
type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// BasicUser is one accepted Basic credential.
type BasicUser struct {
	Username string `mapstructure:"username"`
	// Password is plain text or a bcrypt hash ("$2a$...")
	Password string `mapstructure:"password"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"spec":             "spec",
	"listen":           "listen",
	"strict":           "strict",
	"development":      "development",
	"echo":             "echo",
	"max-body-size":    "max_body_size",
	"log-level":        "log_level",
	"shutdown-timeout": "shutdown_timeout",
	"cors-origin":      "cors.origin",
}

// LoadConfig reads the configuration from configFile (or ./oasrouter.yaml
// when empty), OASROUTER_* environment variables and the flags of cmd, in
// increasing order of precedence. cmd may be nil.
func LoadConfig(configFile string, cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetDefault("spec", "")
	v.SetDefault("listen", ":8080")
	v.SetDefault("strict", false)
	v.SetDefault("development", false)
	v.SetDefault("echo", false)
	v.SetDefault("max_body_size", router.DefaultMaxBodySize)
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("cors.origin", "*")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("oasrouter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OASROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Spec == "" {
		return errors.New("spec is required (--spec, OASROUTER_SPEC or spec: in the config file)")
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max_body_size must be positive, got %d", c.MaxBodySize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if c.CORS.Origin == "" {
		return errors.New("cors.origin cannot be empty (use \"*\" to allow any origin)")
	}
	for scheme, jc := range c.Security.JWT {
		if jc.Secret == "" {
			return fmt.Errorf("security.jwt.%s.secret cannot be empty", scheme)
		}
	}
	return nil
}

// RouterOptions converts the configuration into router options.
func (c *Config) RouterOptions() []router.Option {
	return []router.Option{
		router.WithStrictMode(c.Strict),
		router.WithDevelopmentMode(c.Development),
		router.WithMaxBodySize(c.MaxBodySize),
		router.WithCORS(router.CORSConfig{Origin: c.CORS.Origin, Headers: c.CORS.Headers}),
	}
}
