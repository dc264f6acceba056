package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	EnvironmentSandbox = "sandbox"
	EnvironmentLive    = "live"

	// CallbackPath is where the server mounts the callback endpoint.
	CallbackPath = "callback/zwitch"
)

type Config struct {
	AppEnv  string `env:"APP_ENV"`
	AppPort string `env:"APP_PORT"`

	DBHost     string `env:"DB_HOST"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT"`

	ZwitchAccessKey   string `env:"ZWITCH_ACCESS_KEY"`
	ZwitchSecretKey   string `env:"ZWITCH_SECRET_KEY"`
	ZwitchEnvironment string `env:"ZWITCH_ENVIRONMENT"`
	ZwitchBaseURL     string `env:"ZWITCH_BASE_URL"`
	ZwitchTimezone    string `env:"ZWITCH_TIMEZONE"`
	ZwitchCurrency    string `env:"ZWITCH_CURRENCY"`
	ZwitchHTTPTimeout string `env:"ZWITCH_HTTP_TIMEOUT"`

	// Name the host platform knows this gateway by; audit log entries and
	// recorded payments are tagged with it.
	ModuleName  string `env:"GATEWAY_MODULE_NAME"`
	SystemURL   string `env:"SYSTEM_URL"`
	CallbackURL string `env:"CALLBACK_URL"`

	JWTSecret         string `env:"JWT_SECRET"`
	AdminUsername     string `env:"ADMIN_USERNAME"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	InternalSecretKey string `env:"INTERNAL_SECRET_KEY"`
	CORSOrigins       string `env:"CORS_ALLOWED_ORIGINS"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load for process startup: invalid configuration is fatal.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Environment variables not loaded properly: %v", err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.ZwitchEnvironment == "" {
		c.ZwitchEnvironment = EnvironmentSandbox
	}
	c.ZwitchEnvironment = strings.ToLower(c.ZwitchEnvironment)
	if c.ZwitchTimezone == "" {
		c.ZwitchTimezone = "Asia/Kolkata"
	}
	if c.ZwitchCurrency == "" {
		c.ZwitchCurrency = "INR"
	}
	if c.ZwitchHTTPTimeout == "" {
		c.ZwitchHTTPTimeout = "30s"
	}
	if c.ModuleName == "" {
		c.ModuleName = "zwitch"
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "payments.events"
	}
	if c.SystemURL != "" && !strings.HasSuffix(c.SystemURL, "/") {
		c.SystemURL += "/"
	}
	// Served under the host's URL unless deployed elsewhere.
	if c.CallbackURL == "" && c.SystemURL != "" {
		c.CallbackURL = c.SystemURL + CallbackPath
	}
}

func (c *Config) validate() error {
	if c.DBHost == "" {
		return errors.New("DB_HOST is not set")
	}
	if c.ZwitchEnvironment != EnvironmentSandbox && c.ZwitchEnvironment != EnvironmentLive {
		return fmt.Errorf("invalid ZWITCH_ENVIRONMENT %q (use sandbox or live)", c.ZwitchEnvironment)
	}
	if _, err := time.ParseDuration(c.ZwitchHTTPTimeout); err != nil {
		return fmt.Errorf("invalid ZWITCH_HTTP_TIMEOUT: %w", err)
	}
	if err := requireAbsoluteURL("SYSTEM_URL", c.SystemURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("CALLBACK_URL", c.CallbackURL); err != nil {
		return err
	}
	return nil
}

// requireAbsoluteURL rejects empty and relative URLs: redirects and gateway
// callbacks built from them would resolve against the wrong host.
func requireAbsoluteURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is not set", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q (must be an absolute http(s) URL)", name, raw)
	}
	return nil
}

// HTTPTimeout is the timeout applied to every gateway call.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.ZwitchHTTPTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) AllowedOrigins() []string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		u, err := url.Parse(c.SystemURL)
		if err != nil || u.Host == "" {
			return nil
		}
		return []string{u.Scheme + "://" + u.Host}
	}
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
