package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"zwitch-gateway/internal/logger"
	"zwitch-gateway/internal/metrics"
	"zwitch-gateway/internal/payment"
	"zwitch-gateway/internal/utils"

	"go.uber.org/zap"
)

const (
	ActionCreateToken = "create_token"
	ActionSuccess     = "success"
	ActionFailure     = "failure"
	ActionCallback    = "callback"

	maxBodyBytes = 1 << 20
)

// Handler serves the callback endpoint for the checkout widget and the
// gateway.
type Handler struct {
	PaymentSvc payment.Service
}

func NewWebhookHandler(paymentSvc payment.Service) *Handler {
	return &Handler{PaymentSvc: paymentSvc}
}

type tokenResponse struct {
	Success  bool            `json:"success"`
	Token    string          `json:"token,omitempty"`
	Message  string          `json:"message,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// CallbackHandler dispatches on the action query parameter.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")

	switch action {
	case ActionCreateToken:
		h.createToken(w, r)
	case ActionSuccess, ActionFailure, ActionCallback:
		h.verify(w, r, action)
	default:
		logger.FromCtx(r.Context()).Warn("invalid callback action", zap.String("action", action))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Invalid request"))
	}
}

// ----------------- create_token -----------------

func (h *Handler) createToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		InvoiceID json.RawMessage `json:"invoice_id"`
		OrderRef  *string         `json:"order_ref"`
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil || body.OrderRef == nil || strings.TrimSpace(*body.OrderRef) == "" {
		writeTokenError(w, payment.ErrInvalidRequest)
		return
	}

	raw := bytes.TrimSpace(body.InvoiceID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		writeTokenError(w, payment.ErrInvalidRequest)
		return
	}

	// Present but not an id the store could hold.
	invoiceID, ok := parseInvoiceID(raw)
	if !ok {
		writeTokenError(w, payment.ErrInvalidInvoice)
		return
	}

	token, err := h.PaymentSvc.CreateToken(ctx, payment.CreateTokenInput{
		InvoiceID: invoiceID,
		OrderRef:  *body.OrderRef,
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("create_token failed",
			zap.Uint("invoice_id", invoiceID),
			zap.Error(err),
		)
		writeTokenError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, tokenResponse{Success: true, Token: token})
}

// parseInvoiceID accepts the id as a JSON number or a numeric string.
func parseInvoiceID(raw json.RawMessage) (uint, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return 0, false
	}

	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Token errors are answered with 200 so the widget script can branch on
// the body alone.
func writeTokenError(w http.ResponseWriter, err error) {
	res := tokenResponse{Success: false}

	var (
		tErr   *payment.TransportError
		apiErr *payment.APIError
	)
	switch {
	case errors.Is(err, payment.ErrInvalidRequest):
		res.Message = "Invalid request data"
	case errors.Is(err, payment.ErrInvalidInvoice):
		res.Message = "Invalid invoice"
	case errors.Is(err, payment.ErrInvalidClient):
		res.Message = "Invalid client"
	case errors.As(err, &tErr):
		res.Message = "Connection error: " + tErr.Err.Error()
	case errors.As(err, &apiErr):
		res.Message = "Error creating payment token"
		res.Response = upstreamPayload(apiErr.Body)
	default:
		res.Message = "Error creating payment token"
		res.Response = json.RawMessage("null")
	}

	utils.WriteJSON(w, http.StatusOK, res)
}

func upstreamPayload(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return json.RawMessage(trimmed)
}

// ----------------- success / failure / callback -----------------

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, action string) {
	ctx := r.Context()
	req := verifyRequestFrom(r, action)

	res := h.PaymentSvc.VerifyPayment(ctx, req)
	metrics.IncCallbackOutcome(action, res.Outcome.String())

	logger.FromCtx(ctx).Info("payment verification finished",
		zap.String("action", action),
		zap.String("invoice_id", res.InvoiceID),
		zap.String("outcome", res.Outcome.String()),
	)

	if action != ActionCallback {
		target := payment.InvoiceRedirectURL(h.PaymentSvc.Config().SystemURL, res.InvoiceID, res.Outcome)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	w.WriteHeader(CallbackStatus(res.Outcome))
}

// CallbackStatus is the bare status the gateway webhook receives. Resolved
// outcomes are acknowledged with 200 so the gateway stops retrying. A
// gateway transport failure gets 500, and so does OutcomeStoreFailure: it is
// the only non-transport 500, sent so the gateway redelivers a capture the
// host store failed to record.
func CallbackStatus(o payment.Outcome) int {
	switch o {
	case payment.OutcomeMissingToken:
		return http.StatusBadRequest
	case payment.OutcomeTransportFailure, payment.OutcomeStoreFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// verifyRequestFrom reads token and invoice id from the query string, then
// from the posted body (form or JSON). A posted mtx overrides the invoice id.
func verifyRequestFrom(r *http.Request, action string) payment.VerifyRequest {
	q := r.URL.Query()
	req := payment.VerifyRequest{
		Action:       action,
		PaymentToken: q.Get("payment_token"),
		InvoiceID:    q.Get("invoice_id"),
		OrderRef:     q.Get("order_ref"),
	}
	if req.InvoiceID == "" {
		req.InvoiceID = "0"
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return req
	}

	fields := postedFields(r)
	if req.PaymentToken == "" {
		req.PaymentToken = fields["payment_token"]
	}
	if mtx := fields["mtx"]; mtx != "" {
		if id, ok := payment.InvoiceIDFromReference(mtx); ok {
			req.InvoiceID = id
		}
	}
	return req
}

func postedFields(r *http.Request) map[string]string {
	out := map[string]string{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return out
		}
		for k, v := range body {
			switch t := v.(type) {
			case string:
				out[k] = t
			case json.Number:
				out[k] = t.String()
			}
		}
		return out
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return out
	}
	for _, k := range []string{"payment_token", "mtx"} {
		out[k] = r.PostForm.Get(k)
	}
	return out
}
