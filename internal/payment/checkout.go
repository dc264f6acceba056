package payment

import (
	"bytes"
	"fmt"
	"html/template"
)

type CheckoutParams struct {
	InvoiceID   uint
	OrderRef    string
	AccessKey   string
	Environment Environment
	// CallbackURL is the callback endpoint without query string.
	CallbackURL string
	SystemURL   string
	PayNowLabel string
}

// widgetConfig is what the inline script needs, injected as one JSON value.
type widgetConfig struct {
	InvoiceID   string `json:"invoice_id"`
	OrderRef    string `json:"order_ref"`
	AccessKey   string `json:"accesskey"`
	Sandbox     bool   `json:"sandbox"`
	CallbackURL string `json:"callback_url"`
	CancelURL   string `json:"cancel_url"`
	PayNowLabel string `json:"pay_now_label"`
}

var checkoutTemplate = template.Must(template.New("checkout").Parse(`<meta name="viewport" content="width=device-width, initial-scale=1" />
<script id="context" type="text/javascript" src="{{.ScriptURL}}"></script>
<button id="zwitch-pay-button" type="button">{{.Config.PayNowLabel}}</button>
<script>
document.addEventListener("DOMContentLoaded", function() {
    var cfg = {{.Config}};
    var payButton = document.getElementById("zwitch-pay-button");

    function handleError(message) {
        alert(message);
        payButton.textContent = cfg.pay_now_label;
        payButton.disabled = false;
    }

    function completionURL(action, token) {
        return cfg.callback_url + "?action=" + action +
            "&invoice_id=" + encodeURIComponent(cfg.invoice_id) +
            "&order_ref=" + encodeURIComponent(cfg.order_ref) +
            "&payment_token=" + encodeURIComponent(token || "");
    }

    function initializeLayer(paymentToken) {
        Layer.checkout({
            token: paymentToken,
            accesskey: cfg.accesskey,
            theme: { color: "#3d9080", error_color: "#ff2b2b" }
        },
        function(response) {
            if (response.status == "captured") {
                var tokenId = cfg.sandbox ? response.payment_token_id : response.payment_token;
                window.location.href = completionURL("success", tokenId);
            } else if (response.status == "failed") {
                var failedId = cfg.sandbox ? (response.payment_token_id || "") : (response.id || "");
                window.location.href = completionURL("failure", failedId);
            } else if (response.status == "cancelled") {
                window.location.href = cfg.cancel_url;
            }
        },
        function(err) {
            handleError("Payment initialization error: " + err.message);
        });
    }

    function createPaymentToken() {
        payButton.disabled = true;
        payButton.textContent = "Processing...";

        var xhr = new XMLHttpRequest();
        xhr.open("POST", cfg.callback_url + "?action=create_token", true);
        xhr.setRequestHeader("Content-Type", "application/json");
        xhr.onreadystatechange = function() {
            if (xhr.readyState !== 4) {
                return;
            }
            if (xhr.status !== 200) {
                handleError("Error connecting to payment server");
                return;
            }
            try {
                var response = JSON.parse(xhr.responseText);
                if (response.success && response.token) {
                    initializeLayer(response.token);
                } else {
                    handleError("Payment initialization failed: " + (response.message || "Unknown error"));
                }
            } catch (e) {
                handleError("Invalid response from server");
            }
        };
        xhr.send(JSON.stringify({ invoice_id: cfg.invoice_id, order_ref: cfg.order_ref }));
    }

    payButton.addEventListener("click", createPaymentToken);
});
</script>`))

// RenderCheckout renders the pay-now widget. It has no side effects.
func RenderCheckout(p CheckoutParams) (string, error) {
	label := p.PayNowLabel
	if label == "" {
		label = "Pay Now"
	}

	cfg := GatewayConfig{Environment: p.Environment}
	data := struct {
		ScriptURL string
		Config    widgetConfig
	}{
		ScriptURL: cfg.LayerScriptURL(),
		Config: widgetConfig{
			InvoiceID:   fmt.Sprintf("%d", p.InvoiceID),
			OrderRef:    p.OrderRef,
			AccessKey:   p.AccessKey,
			Sandbox:     cfg.IsSandbox(),
			CallbackURL: p.CallbackURL,
			CancelURL:   invoiceURL(p.SystemURL, fmt.Sprintf("%d", p.InvoiceID), false),
			PayNowLabel: label,
		},
	}

	var buf bytes.Buffer
	if err := checkoutTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render checkout: %w", err)
	}
	return buf.String(), nil
}
