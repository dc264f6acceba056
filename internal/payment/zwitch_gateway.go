package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"zwitch-gateway/internal/logger"
	"zwitch-gateway/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15:04:05"

type zwitchGateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
	now        func() time.Time
}

func NewZwitchGateway(cfg GatewayConfig) Gateway {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		logger.L().Warn("Zwitch credentials are empty")
	}
	if cfg.Location == nil {
		cfg.Location = loadLocation("")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &zwitchGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// newRequest builds an authenticated gateway request. Every call carries the
// bearer credential and a fresh X-O-Timestamp in the gateway's timezone.
func (z *zwitchGateway) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, z.cfg.APIBaseURL()+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-O-Timestamp", z.now().In(z.cfg.Location).Format(timestampLayout))
	req.Header.Set("Authorization", "Bearer "+z.cfg.AccessKey+":"+z.cfg.SecretKey)
	return req, nil
}

// do sends req and returns the status code and body. Only failures to get
// a readable response are errors.
func (z *zwitchGateway) do(req *http.Request, op string) (int, []byte, error) {
	timer := metrics.StartTimer()

	resp, err := z.httpClient.Do(req)
	if err != nil {
		metrics.ObserveGatewayCall(op, "error", timer.Duration())
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayCall(op, "error", timer.Duration())
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	metrics.ObserveGatewayCall(op, strconv.Itoa(resp.StatusCode), timer.Duration())
	return resp.StatusCode, body, nil
}

func decodeStatus(code int, body []byte) *StatusResponse {
	res := &StatusResponse{StatusCode: code, Raw: body}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err == nil {
		res.Data = data
	}
	return res
}

// ----------------- CreatePaymentToken -----------------

func (z *zwitchGateway) CreatePaymentToken(ctx context.Context, in TokenRequest) (*TokenResponse, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("mtx", in.Mtx),
		zap.String("amount", in.Amount),
		zap.String("currency", in.Currency),
	)

	req, err := z.newRequest(ctx, http.MethodPost, "/payment_token", in)
	if err != nil {
		log.Error("failed building token request", zap.Error(err))
		return nil, err
	}

	log.Info("requesting payment token from Zwitch")

	code, body, err := z.do(req, "create_token")
	if err != nil {
		log.Error("Zwitch request failed", zap.Error(err))
		return nil, err
	}

	res := decodeStatus(code, body)
	id := res.Field("id")
	if code != http.StatusOK || id == "" {
		log.Error("Zwitch rejected token request",
			zap.Int("status", code),
			zap.ByteString("response", body),
		)
		return nil, &APIError{StatusCode: code, Body: body}
	}

	log.Info("payment token created", zap.String("token", id))
	return &TokenResponse{ID: id, Raw: body}, nil
}

// ----------------- GetPaymentStatus -----------------

func (z *zwitchGateway) GetPaymentStatus(ctx context.Context, token string) (*StatusResponse, error) {
	log := logger.FromCtx(ctx).With(zap.String("payment_token", token))

	req, err := z.newRequest(ctx, http.MethodGet, "/payment_token/"+url.PathEscape(token)+"/payment", nil)
	if err != nil {
		log.Error("failed building status request", zap.Error(err))
		return nil, &TransportError{Op: "payment_status", Err: err}
	}

	code, body, err := z.do(req, "payment_status")
	if err != nil {
		log.Error("Zwitch status request failed", zap.Error(err))
		return nil, err
	}

	res := decodeStatus(code, body)
	log.Info("payment status received",
		zap.Int("http_status", code),
		zap.String("status", res.Status()),
	)
	return res, nil
}

// ----------------- Refund -----------------

func (z *zwitchGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*StatusResponse, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("transaction_id", transactionID),
		zap.String("amount", amount.StringFixed(2)),
	)

	body := map[string]string{"amount": amount.StringFixed(2)}
	req, err := z.newRequest(ctx, http.MethodPost, "/payment_token/"+url.PathEscape(transactionID)+"/refund", body)
	if err != nil {
		log.Error("failed building refund request", zap.Error(err))
		return nil, &TransportError{Op: "refund", Err: err}
	}

	code, respBody, err := z.do(req, "refund")
	if err != nil {
		log.Error("Zwitch refund request failed", zap.Error(err))
		return nil, err
	}

	res := decodeStatus(code, respBody)
	log.Info("refund response received",
		zap.Int("http_status", code),
		zap.String("status", res.Status()),
	)
	return res, nil
}

// ExtractTransactionID reads the captured payment's transaction id. Sandbox
// replies carry it as payment_token_id, live replies as id. Returns "" when
// the field is absent.
func ExtractTransactionID(env Environment, res *StatusResponse) string {
	if env == EnvironmentLive {
		return res.Field("id")
	}
	return res.Field("payment_token_id")
}
