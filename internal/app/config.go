package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete console configuration, loadable from environment
// variables (ADMIN_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"Console listen address"`
	Remote      RemoteConfig
	Session     SessionConfig
	SignInLimit SignInLimitConfig
	Readiness   ReadinessConfig
	Workspace   WorkspaceConfig
	Graceful    GracefulConfig
}

// RemoteConfig points at the remote catalog service.
type RemoteConfig struct {
	BaseURL string        `env:"BASE_URL" usage:"Catalog service base URL" flag:"remote-base-url"`
	APIPath string        `env:"API_PATH" usage:"Catalog API path segment of this shop" flag:"remote-api-path"`
	Timeout time.Duration `default:"10s" usage:"Timeout of one catalog request" flag:"remote-timeout"`
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	HashKey  string `env:"HASH_KEY" usage:"Cookie signing key, at least 32 bytes; random per process when empty" flag:"session-hash-key"`
	BlockKey string `env:"BLOCK_KEY" usage:"Cookie encryption key of 16, 24 or 32 bytes; unencrypted when empty" flag:"session-block-key"`
	Secure   bool   `default:"false" usage:"Send the cookie over HTTPS only" flag:"session-secure"`
}

// SignInLimitConfig controls the per-client sign-in throttle.
type SignInLimitConfig struct {
	Max    int           `default:"10" usage:"Max sign-in attempts per window"`
	Window time.Duration `default:"1m" usage:"Sign-in throttle window"`
	// TrustProxy keys the throttle on X-Forwarded-For. Enable only behind a
	// proxy that overwrites the header.
	TrustProxy bool `default:"false" usage:"Key the sign-in throttle on X-Forwarded-For" flag:"sign-in-trust-proxy"`
}

// ReadinessConfig controls the catalog reachability check behind /readyz.
type ReadinessConfig struct {
	Interval  time.Duration `default:"10s" usage:"Health check interval" flag:"readiness-interval"`
	Failures  int           `default:"3" usage:"Consecutive catalog failures before not ready" flag:"readiness-failures"`
	Successes int           `default:"2" usage:"Consecutive catalog successes before ready again" flag:"readiness-successes"`
}

// WorkspaceConfig controls server-side workspace housekeeping.
type WorkspaceConfig struct {
	EvictInterval time.Duration `default:"5m" usage:"How often expired workspaces are dropped" flag:"workspace-evict-interval"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "ADMIN",
		Files:     []string{"config.yaml", "/etc/catalog-admin/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Remote.BaseURL == "":
		return errors.New("catalog base URL is required: set ADMIN_REMOTE_BASE_URL or CATALOG_URL")
	case c.Remote.APIPath == "":
		return errors.New("catalog API path is required: set ADMIN_REMOTE_API_PATH or CATALOG_API_PATH")
	case c.SignInLimit.Max <= 0 || c.SignInLimit.Window <= 0:
		return errors.New("sign-in limit max and window must be positive")
	case c.Readiness.Interval <= 0 || c.Readiness.Failures <= 0 || c.Readiness.Successes <= 0:
		return errors.New("readiness interval and thresholds must be positive")
	case c.Workspace.EvictInterval <= 0:
		return errors.New("workspace evict interval must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names to the console configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = os.Getenv("CATALOG_URL")
	}
	if c.Remote.APIPath == "" {
		c.Remote.APIPath = os.Getenv("CATALOG_API_PATH")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
