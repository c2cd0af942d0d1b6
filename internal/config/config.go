// Package config reads the service configuration from the environment.
package config

import (
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/gotrue"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/local"
)

// Identity provider backends.
const (
	ProviderGoTrue = "gotrue"
	ProviderLocal  = "local"
	ProviderMemory = "memory"
)

// Config is the whole service configuration.
type Config struct {
	Addr     string `env:"APP_ADDR" envDefault:"0.0.0.0:8431"`
	Provider string `env:"IDENTITY_PROVIDER" envDefault:"local"`

	GoTrue GoTrue
	Local  Local
	Redis  Redis
	Cookie Cookie
	Paths  Paths

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// GoTrue configures the hosted identity backend.
type GoTrue struct {
	URL     string        `env:"SUPABASE_URL"`
	AnonKey string        `env:"SUPABASE_ANON_KEY"`
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

// Local configures the self-hosted identity backend.
type Local struct {
	Secret     string        `env:"AUTH_JWT_SECRET"`
	Issuer     string        `env:"AUTH_ISSUER" envDefault:"service-web-auth"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"720h"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Cookie struct {
	Secure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	Domain string `env:"COOKIE_DOMAIN"`
}

type Paths struct {
	Login string `env:"LOGIN_PATH" envDefault:"/login"`
	Home  string `env:"HOME_PATH" envDefault:"/"`
}

// Load parses the environment and checks the backend settings.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the selected backend cannot start without.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGoTrue:
		if c.GoTrue.URL == "" || c.GoTrue.AnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for the gotrue provider")
		}
	case ProviderLocal, ProviderMemory:
		if c.Local.Secret == "" {
			return errors.Newf("AUTH_JWT_SECRET is required for the %s provider", c.Provider)
		}
	default:
		return errors.Newf("unknown IDENTITY_PROVIDER %q", c.Provider)
	}
	return nil
}

func (c Config) GoTrueConfig() gotrue.Config {
	return gotrue.Config{URL: c.GoTrue.URL, AnonKey: c.GoTrue.AnonKey, Timeout: c.GoTrue.Timeout}
}

func (c Config) LocalConfig() local.Config {
	return local.Config{
		Secret:     c.Local.Secret,
		Issuer:     c.Local.Issuer,
		AccessTTL:  c.Local.AccessTTL,
		RefreshTTL: c.Local.RefreshTTL,
	}
}

func (c Config) CookieOptions() identity.CookieOptions {
	return identity.CookieOptions{
		Path:     "/",
		Domain:   c.Cookie.Domain,
		Secure:   c.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c Config) GuardPaths() auth.Paths {
	return auth.Paths{Login: c.Paths.Login, Home: c.Paths.Home}
}
