package service

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"

	"dormitory_backend/internals/features/finance/gateway/model"
	"dormitory_backend/internals/helpers/apperr"
)

var (
	ErrSnapCheckout         = apperr.External("snap_checkout_failed", "snap checkout could not be created")
	ErrInvalidAmountForSnap = apperr.Validation("invalid_amount", "snap amount must be a positive whole number")
)

// snapTransactor is the part of snap.Client used here.
type snapTransactor interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type CustomerInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type SnapCheckoutResult struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// SnapCheckout is the alternate hosted checkout provider.
type SnapCheckout struct {
	client    snapTransactor
	serverKey string
	now       func() time.Time
}

func NewSnapCheckout(serverKey string, useProduction bool) *SnapCheckout {
	var c snap.Client
	if useProduction {
		c.New(serverKey, midtrans.Production)
	} else {
		c.New(serverKey, midtrans.Sandbox)
	}
	return &SnapCheckout{client: &c, serverKey: serverKey, now: time.Now}
}

func (s *SnapCheckout) Enabled() bool { return s != nil && s.serverKey != "" }

// CreateCheckout opens a Snap transaction for the outstanding amount of an
// invoice. Snap takes whole currency units.
func (s *SnapCheckout) CreateCheckout(invoiceID uint64, amount decimal.Decimal, description string, cust CustomerInput) (*SnapCheckoutResult, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return nil, ErrInvalidAmountForSnap.WithDetail("%s", amount.String())
	}
	orderID := model.SnapOrderID(invoiceID, s.now())
	gross := amount.IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: cust.FirstName,
			LName: cust.LastName,
			Email: cust.Email,
			Phone: cust.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       orderID,
				Price:    gross,
				Qty:      1,
				Name:     truncate(firstNonEmpty(description, "Dormitory invoice"), 50),
				Category: "DORMITORY",
			},
		},
	}

	resp, merr := s.client.CreateTransaction(req)
	if merr != nil {
		return nil, ErrSnapCheckout.WithDetail("%s", merr.Message)
	}
	return &SnapCheckoutResult{OrderID: orderID, Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// VerifySnapNotification checks signature_key =
// SHA512(order_id + status_code + gross_amount + serverKey).
func VerifySnapNotification(serverKey string, n model.SnapNotification) bool {
	if serverKey == "" || n.SignatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	want := hex.EncodeToString(sum[:])
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// Verify checks n against this checkout's server key.
// Verify fails closed when no server key is configured.
func (s *SnapCheckout) Verify(n model.SnapNotification) bool {
	if !s.Enabled() {
		return false
	}
	return VerifySnapNotification(s.serverKey, n)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
