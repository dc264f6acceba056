package payment

import "net/url"

// invoiceURL is the host's invoice page with the success or failure flag.
func invoiceURL(systemURL, invoiceID string, paid bool) string {
	u := systemURL + "viewinvoice.php?id=" + url.QueryEscape(invoiceID)
	if paid {
		return u + "&paymentsuccess=true"
	}
	return u + "&paymentfailed=true"
}

// InvoiceRedirectURL is where an interactive flow sends the customer once
// the outcome is known.
func InvoiceRedirectURL(systemURL, invoiceID string, o Outcome) string {
	return invoiceURL(systemURL, invoiceID, o.Paid())
}
