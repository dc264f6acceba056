package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"zwitch-gateway/internal/auth"
	"zwitch-gateway/internal/invoice"
	"zwitch-gateway/internal/logger"
	"zwitch-gateway/internal/payment"
	"zwitch-gateway/internal/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	PaymentSvc payment.Service
	Admin      auth.AdminAuthenticator
	// SecureCookies marks the admin cookie Secure; off only for local http.
	SecureCookies bool
}

func NewHandler(paymentSvc payment.Service, admin auth.AdminAuthenticator, secureCookies bool) *Handler {
	return &Handler{
		PaymentSvc:    paymentSvc,
		Admin:         admin,
		SecureCookies: secureCookies,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// CheckoutLink renders the pay-now widget for an unpaid invoice.
func (h *Handler) CheckoutLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := utils.ToUint(r.URL.Query().Get("invoice_id"))
	if err != nil || invoiceID == 0 {
		utils.WriteJSONError(w, "invalid invoice_id", http.StatusBadRequest)
		return
	}

	html, err := h.PaymentSvc.Checkout(ctx, invoiceID, r.URL.Query().Get("lang"))
	switch {
	case err == nil:
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		utils.WriteJSONError(w, "invoice not found", http.StatusNotFound)
		return
	case errors.Is(err, invoice.ErrInvoiceNotPayable):
		utils.WriteJSONError(w, "invoice is not payable", http.StatusConflict)
		return
	default:
		logger.FromCtx(ctx).Error("failed to render checkout", zap.Uint("invoice_id", invoiceID), zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.Admin.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.FromCtx(r.Context()).Warn("admin login failed", zap.String("username", req.Username))
			utils.WriteJSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.FromCtx(r.Context()).Error("failed to issue admin token", zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    token,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	utils.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

type refundRequest struct {
	TransactionID string           `json:"transaction_id"`
	Amount        *decimal.Decimal `json:"amount"`
}

// Refund answers 200 with the refund result whether or not the gateway
// accepted it; the status field carries the outcome.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refundRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TransactionID) == "" || req.Amount == nil {
		utils.WriteJSONError(w, "transaction_id and amount are required", http.StatusBadRequest)
		return
	}

	admin, _ := utils.GetAdminFromContext(ctx)
	logger.FromCtx(ctx).Info("refund requested",
		zap.String("admin", admin),
		zap.String("transaction_id", req.TransactionID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)

	result, err := h.PaymentSvc.Refund(ctx, req.TransactionID, *req.Amount)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidRequest) {
			utils.WriteJSONError(w, "amount must be positive", http.StatusBadRequest)
			return
		}
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) InvoiceLogs(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := utils.ToUint(mux.Vars(r)["id"])
	if err != nil || invoiceID == 0 {
		utils.WriteJSONError(w, "invalid invoice id", http.StatusBadRequest)
		return
	}

	entries, err := h.PaymentSvc.ListLogs(r.Context(), invoiceID)
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to list gateway log", zap.Uint("invoice_id", invoiceID), zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []payment.LogEntry{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"invoice_id": invoiceID,
		"entries":    entries,
	})
}

func (h *Handler) GatewayInfo(w http.ResponseWriter, r *http.Request) {
	cfg := h.PaymentSvc.Config()
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"metadata":    payment.Metadata(),
		"environment": cfg.Environment,
		"currency":    cfg.Currency,
	})
}
