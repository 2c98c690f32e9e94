package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

// Config is loaded from an optional YAML file and the environment. Every key
// maps to an environment variable by upper casing it and replacing dots with
// underscores, so auth.jwt.secret is AUTH_JWT_SECRET.
type Config struct {
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Env                 string        `mapstructure:"env"`  // dev, staging, prod
	Port                int           `mapstructure:"port"` // HTTP server port
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	// GeneratedSecret is set when a dev secret was generated because none
	// was configured.
	GeneratedSecret bool `mapstructure:"-"`
}

type AuthConfig struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Issuer   string         `mapstructure:"issuer"` // used when a request carries no usable host
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Admin    AdminConfig    `mapstructure:"admin"`

	PepperFile        string        `mapstructure:"pepper_file"`
	PrincipalCacheTTL time.Duration `mapstructure:"principal_cache_ttl"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpirationMS int64  `mapstructure:"expiration_ms"`
}

// AccessTTL is the access token lifetime.
func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.ExpirationMS) * time.Millisecond
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	File   string `mapstructure:"file"`   // sqlite database file
	URL    string `mapstructure:"url"`    // postgres DSN
}

// RedisConfig enables the principal cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdminConfig seeds the first administrator into an empty store.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

type RateLimitConfig struct {
	Login   httpx.RateLimitConfig `mapstructure:"login"`
	Refresh httpx.RateLimitConfig `mapstructure:"refresh"`
	Users   httpx.RateLimitConfig `mapstructure:"users"`

	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	// Empty means the peer address is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadConfig reads the configuration. args are the command line arguments
// without the program name; only --config is recognised.
func LoadConfig(args []string) (Config, error) {
	fs := pflag.NewFlagSet("tollgate", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()

	// 1. Config file
	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. Environment overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Defaults; every key must have one for AutomaticEnv to see it
	setDefaults(v)

	// 4. Read
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Auth.JWT.Secret == "" && cfg.Env == "dev" {
		secret, err := generateSecret()
		if err != nil {
			return Config{}, err
		}
		cfg.Auth.JWT.Secret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.expiration_ms", 3600000)
	v.SetDefault("auth.issuer", "tollgate")
	v.SetDefault("auth.database.driver", DriverSQLite)
	v.SetDefault("auth.database.file", "auth.db")
	v.SetDefault("auth.database.url", "")
	v.SetDefault("auth.redis.addr", "")
	v.SetDefault("auth.redis.password", "")
	v.SetDefault("auth.redis.db", 0)
	v.SetDefault("auth.admin.username", "")
	v.SetDefault("auth.admin.password", "")
	v.SetDefault("auth.pepper_file", "pepper")
	v.SetDefault("auth.principal_cache_ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.login.requests", httpx.StrictLimit.RequestsPerWindow)
	v.SetDefault("rate_limit.login.window", httpx.StrictLimit.Window)
	v.SetDefault("rate_limit.login.burst", httpx.StrictLimit.Burst)
	v.SetDefault("rate_limit.refresh.requests", httpx.ModerateLimit.RequestsPerWindow)
	v.SetDefault("rate_limit.refresh.window", httpx.ModerateLimit.Window)
	v.SetDefault("rate_limit.refresh.burst", httpx.ModerateLimit.Burst)
	v.SetDefault("rate_limit.users.requests", httpx.ModerateLimit.RequestsPerWindow)
	v.SetDefault("rate_limit.users.window", httpx.ModerateLimit.Window)
	v.SetDefault("rate_limit.users.burst", httpx.ModerateLimit.Burst)
	v.SetDefault("rate_limit.trusted_proxies", []string{})

	v.SetDefault("env", "dev")
	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_grace_period", 10*time.Second)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Auth.JWT.Secret == "" {
		errs = append(errs, errors.New("auth.jwt.secret (AUTH_JWT_SECRET) is required"))
	}
	if c.Auth.JWT.ExpirationMS <= 0 {
		errs = append(errs, errors.New("auth.jwt.expiration_ms (AUTH_JWT_EXPIRATION_MS) must be positive"))
	}

	switch c.Auth.Database.Driver {
	case DriverSQLite:
		if c.Auth.Database.File == "" {
			errs = append(errs, errors.New("auth.database.file (AUTH_DATABASE_FILE) is required for sqlite"))
		}
	case DriverPostgres:
		if c.Auth.Database.URL == "" {
			errs = append(errs, errors.New("auth.database.url (AUTH_DATABASE_URL) is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.database.driver %q is not one of sqlite, postgres", c.Auth.Database.Driver))
	}

	if _, err := httpx.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("rate_limit.trusted_proxies: %w", err))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
