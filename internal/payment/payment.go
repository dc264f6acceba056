package payment

import (
	"context"
	"time"

	"zwitch-gateway/internal/config"
	"zwitch-gateway/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Environment string

const (
	EnvironmentSandbox Environment = config.EnvironmentSandbox
	EnvironmentLive    Environment = config.EnvironmentLive
)

const (
	sandboxBaseURL = "https://api.zwitch.io/v1/pg/sandbox"
	liveBaseURL    = "https://api.zwitch.io/v1/pg"

	sandboxLayerURL = "https://sandbox-payments.open.money/layer"
	liveLayerURL    = "https://payments.open.money/layer"
)

// Gateway is the remote Zwitch payment-token API.
type Gateway interface {
	CreatePaymentToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
	GetPaymentStatus(ctx context.Context, token string) (*StatusResponse, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*StatusResponse, error)
}

type ModuleMetadata struct {
	DisplayName string `json:"display_name"`
	APIVersion  string `json:"api_version"`
}

func Metadata() ModuleMetadata {
	return ModuleMetadata{
		DisplayName: "Zwitch Payment Gateway",
		APIVersion:  "1.1",
	}
}

// GatewayConfig carries everything the gateway client and the payment
// service need. It is built once at startup and passed by value.
type GatewayConfig struct {
	AccessKey   string
	SecretKey   string
	Environment Environment
	// BaseURL overrides the per-environment API base when set.
	BaseURL  string
	Location *time.Location
	Currency string
	Timeout  time.Duration

	// ModuleName tags audit entries and recorded payments.
	ModuleName  string
	CallbackURL string
	SystemURL   string
}

func NewGatewayConfig(cfg *config.Config) GatewayConfig {
	return GatewayConfig{
		AccessKey:   cfg.ZwitchAccessKey,
		SecretKey:   cfg.ZwitchSecretKey,
		Environment: Environment(cfg.ZwitchEnvironment),
		BaseURL:     cfg.ZwitchBaseURL,
		Location:    loadLocation(cfg.ZwitchTimezone),
		Currency:    cfg.ZwitchCurrency,
		Timeout:     cfg.HTTPTimeout(),
		ModuleName:  cfg.ModuleName,
		CallbackURL: cfg.CallbackURL,
		SystemURL:   cfg.SystemURL,
	}
}

// loadLocation falls back to a fixed +05:30 zone when tzdata is missing
// from the host.
func loadLocation(name string) *time.Location {
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.L().Warn("failed to load gateway timezone, using fixed IST offset",
			zap.String("timezone", name),
			zap.Error(err),
		)
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

func (c GatewayConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == EnvironmentLive {
		return liveBaseURL
	}
	return sandboxBaseURL
}

func (c GatewayConfig) LayerScriptURL() string {
	if c.Environment == EnvironmentLive {
		return liveLayerURL
	}
	return sandboxLayerURL
}

func (c GatewayConfig) IsSandbox() bool {
	return c.Environment != EnvironmentLive
}
