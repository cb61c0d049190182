package authclient

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix for configuration environment variables.
// A double underscore separates nesting levels so key names can keep their
// own underscores: CRM_AUTH_API__BASE_URL maps to api.base_url.
const DefaultEnvPrefix = "CRM_AUTH_"

// ClientConfig is the file and env backed implementation of Config.
type ClientConfig struct {
	API struct {
		BaseURL        string        `koanf:"base_url"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"api"`
	State struct {
		Dir string `koanf:"dir"`
	} `koanf:"state"`
	Routes struct {
		Login   string `koanf:"login"`
		Landing string `koanf:"landing"`
	} `koanf:"routes"`
	Lockout struct {
		MaxAttempts int           `koanf:"max_attempts"`
		Window      time.Duration `koanf:"window"`
		Duration    time.Duration `koanf:"duration"`
	} `koanf:"lockout"`
	Debug bool `koanf:"debug"`
}

// DefaultConfig returns the configuration the client runs with when nothing
// overrides it. The base URL has no sensible default and must be provided.
func DefaultConfig() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.API.RequestTimeout = defaultRequestTimeout
	cfg.State.Dir = defaultStateDir()
	cfg.Routes.Login = "login"
	cfg.Routes.Landing = "app-center"
	cfg.Lockout.MaxAttempts = defaultMaxLoginAttempts
	cfg.Lockout.Window = defaultAttemptWindow
	cfg.Lockout.Duration = defaultLockoutDuration
	return cfg
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "crm-auth")
}

// LoadConfig builds a ClientConfig from defaults, an optional YAML file, and
// CRM_AUTH_* environment variables, in that override order.
func LoadConfig(path string) (*ClientConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrap(err, errors.CategoryBadInput, "unable to load config file")
			}
		}
	}

	transformer := func(s string) string {
		s = strings.TrimPrefix(s, DefaultEnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", transformer), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "unable to load config env")
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "unable to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *ClientConfig) Validate() error {
	err := validation.Errors{
		"api.base_url": validation.Validate(c.API.BaseURL, validation.Required, is.URL),
	}.Filter()
	if err != nil {
		return wrapValidationError(err)
	}
	return nil
}

func (c *ClientConfig) GetBaseURL() string { return c.API.BaseURL }

func (c *ClientConfig) GetRequestTimeout() time.Duration {
	if c.API.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return c.API.RequestTimeout
}

func (c *ClientConfig) GetStateDir() string {
	if c.State.Dir == "" {
		return defaultStateDir()
	}
	return c.State.Dir
}

func (c *ClientConfig) GetLoginRoute() string {
	if c.Routes.Login == "" {
		return "login"
	}
	return c.Routes.Login
}

func (c *ClientConfig) GetLandingRoute() string {
	if c.Routes.Landing == "" {
		return "app-center"
	}
	return c.Routes.Landing
}

func (c *ClientConfig) GetMaxLoginAttempts() int {
	if c.Lockout.MaxAttempts <= 0 {
		return defaultMaxLoginAttempts
	}
	return c.Lockout.MaxAttempts
}

func (c *ClientConfig) GetAttemptWindow() time.Duration {
	if c.Lockout.Window <= 0 {
		return defaultAttemptWindow
	}
	return c.Lockout.Window
}

func (c *ClientConfig) GetLockoutDuration() time.Duration {
	if c.Lockout.Duration <= 0 {
		return defaultLockoutDuration
	}
	return c.Lockout.Duration
}

func (c *ClientConfig) GetDebug() bool { return c.Debug }

var _ Config = (*ClientConfig)(nil)
