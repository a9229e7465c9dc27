package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SnapNotification is the JSON body Snap posts to the notification URL.
type SnapNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	SettlementTime    string `json:"settlement_time"`
}

// SnapVerdict is what a Snap transaction status means for settlement.
type SnapVerdict int

const (
	SnapPending SnapVerdict = iota
	SnapSuccess
	SnapFailure
)

// Verdict maps transaction_status (+ fraud_status for capture).
// capture/challenge stays pending until Snap decides.
func (n SnapNotification) Verdict() SnapVerdict {
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement":
		return SnapSuccess
	case "capture":
		switch strings.ToLower(n.FraudStatus) {
		case "accept", "":
			return SnapSuccess
		case "challenge":
			return SnapPending
		}
		return SnapFailure
	case "deny", "cancel", "expire", "failure":
		return SnapFailure
	}
	return SnapPending
}

// SnapOrderID is "<invoiceId>-<yyyyMMddHHmmss>" so repeated checkouts of
// one invoice never collide on Snap's side.
func SnapOrderID(invoiceID uint64, at time.Time) string {
	return strconv.FormatUint(invoiceID, 10) + "-" + at.Format(TimestampLayout)
}

// ParseSnapOrderID returns the invoice id embedded in an order id.
func ParseSnapOrderID(orderID string) (uint64, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(orderID), "-")
	id, err := strconv.ParseUint(head, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidOrderRef.WithField("order_id").WithDetail("%q", orderID)
	}
	return id, nil
}

// Gross parses gross_amount ("150000.00").
func (n SnapNotification) Gross() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidRequest.WithField("gross_amount").WithDetail("%q", n.GrossAmount)
	}
	return d, nil
}
