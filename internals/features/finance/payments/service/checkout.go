// file: internals/features/finance/payments/service/checkout.go
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gwModel "dormitory_backend/internals/features/finance/gateway/model"
	gwService "dormitory_backend/internals/features/finance/gateway/service"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	"dormitory_backend/internals/features/finance/payments/model"
	"dormitory_backend/internals/helpers/apperr"
)

var (
	ErrInvoiceNotPayable    = apperr.Integrity("invoice_not_payable", "invoice has nothing left to pay")
	ErrSnapDisabled         = apperr.Integrity("snap_disabled", "snap checkout is not configured")
	ErrNoGatewayPayment     = apperr.NotFound("gateway_payment_not_found", "invoice has no gateway payment")
	ErrNoSettledPayment     = apperr.NotFound("settled_payment_not_found", "invoice has no settled gateway payment")
	ErrRefundExceedsPayment = apperr.Validation("refund_exceeds_payment", "refund amount exceeds the settled payment")
)

// GatewayAPI is the part of the gateway client checkout needs.
type GatewayAPI interface {
	BuildPaymentURL(req gwModel.PaymentURLRequest) (string, error)
	QueryTransactionStatus(ctx context.Context, req gwModel.QueryRequest) (*gwModel.GatewayQueryResult, error)
	Refund(ctx context.Context, req gwModel.RefundRequest) (*gwModel.GatewayRefundResult, error)
	Config() gwService.Config
}

// SnapAPI is the part of the Snap checkout used here.
type SnapAPI interface {
	Enabled() bool
	CreateCheckout(invoiceID uint64, amount decimal.Decimal, description string, cust gwService.CustomerInput) (*gwService.SnapCheckoutResult, error)
}

type Checkout struct {
	db        *gorm.DB
	gateway   GatewayAPI
	snap      SnapAPI
	returnURL string
	log       *zap.Logger
}

func NewCheckout(db *gorm.DB, gateway GatewayAPI, snap SnapAPI, returnURL string, log *zap.Logger) *Checkout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checkout{db: db, gateway: gateway, snap: snap, returnURL: returnURL, log: log.Named("checkout")}
}

type CheckoutResult struct {
	InvoiceID   uint64          `json:"invoice_id"`
	PaymentID   uint64          `json:"payment_id"`
	Amount      decimal.Decimal `json:"amount"`
	RedirectURL string          `json:"redirect_url"`
	Token       string          `json:"token,omitempty"`
	OrderRef    string          `json:"order_ref"`
}

func orderInfo(invoiceID uint64) string {
	return "Thanh toan hoa don " + strconv.FormatUint(invoiceID, 10)
}

// openPending locks the invoice, checks it still expects money and stores
// a PENDING payment for the outstanding amount.
func openPending(tx *gorm.DB, invoiceID uint64, method model.PaymentMethod, payerID *uint64, orderRef string) (*model.Payment, error) {
	var inv invoiceModel.Invoice
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inv, "invoice_id = ?", invoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invoiceService.ErrInvoiceNotFound.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10))
	}
	if err != nil {
		return nil, err
	}
	outstanding := inv.Outstanding()
	if !inv.InvoiceStatus.Open() || !outstanding.IsPositive() {
		return nil, ErrInvoiceNotPayable.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10)).
			WithDetail("status %s", inv.InvoiceStatus)
	}
	if payerID == nil {
		payerID = inv.InvoiceStudentProfileID
	}

	p := &model.Payment{
		PaymentInvoiceID: invoiceID,
		PaymentPayerID:   payerID,
		PaymentAmount:    outstanding,
		PaymentMethod:    method,
		PaymentProvider:  method.Provider(),
		PaymentStatus:    model.PaymentStatusPending,
	}
	if orderRef != "" {
		p.PaymentOrderRef = &orderRef
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// StartGatewayCheckout records a pending payment for the outstanding amount
// and returns the signed payment URL. A signing failure rolls the payment
// back.
func (c *Checkout) StartGatewayCheckout(ctx context.Context, invoiceID uint64, clientIP string, payerID *uint64) (*CheckoutResult, error) {
	ref := strconv.FormatUint(invoiceID, 10)
	var out *CheckoutResult

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := openPending(tx, invoiceID, model.PaymentMethodGateway, payerID, ref)
		if err != nil {
			return err
		}
		u, err := c.gateway.BuildPaymentURL(gwModel.PaymentURLRequest{
			InvoiceRef: ref,
			Amount:     p.PaymentAmount,
			ReturnURL:  c.returnURL,
			ClientIP:   clientIP,
			OrderInfo:  orderInfo(invoiceID),
		})
		if err != nil {
			return err
		}
		out = &CheckoutResult{
			InvoiceID:   invoiceID,
			PaymentID:   p.PaymentID,
			Amount:      p.PaymentAmount,
			RedirectURL: u,
			OrderRef:    ref,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("gateway checkout started",
		zap.Uint64("invoice_id", invoiceID),
		zap.Uint64("payment_id", out.PaymentID),
		zap.String("amount", out.Amount.String()))
	return out, nil
}

// StartSnapCheckout opens a Snap transaction. The pending payment is
// committed before calling Snap and marked FAILED if Snap refuses.
func (c *Checkout) StartSnapCheckout(ctx context.Context, invoiceID uint64, cust gwService.CustomerInput, payerID *uint64) (*CheckoutResult, error) {
	if c.snap == nil || !c.snap.Enabled() {
		return nil, ErrSnapDisabled
	}

	var p *model.Payment
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = openPending(tx, invoiceID, model.PaymentMethodSnap, payerID, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	res, err := c.snap.CreateCheckout(invoiceID, p.PaymentAmount, orderInfo(invoiceID), cust)
	if err != nil {
		if uerr := c.db.WithContext(ctx).Model(p).Update("payment_status", model.PaymentStatusFailed).Error; uerr != nil {
			c.log.Warn("snap payment not marked failed", zap.Uint64("payment_id", p.PaymentID), zap.Error(uerr))
		}
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(p).Update("payment_order_ref", res.OrderID).Error; err != nil {
		return nil, err
	}

	return &CheckoutResult{
		InvoiceID:   invoiceID,
		PaymentID:   p.PaymentID,
		Amount:      p.PaymentAmount,
		RedirectURL: res.RedirectURL,
		Token:       res.Token,
		OrderRef:    res.OrderID,
	}, nil
}

/* =========================================================
   Gateway operations (query / refund)
========================================================= */

func (c *Checkout) latestGatewayPayment(ctx context.Context, invoiceID uint64, status *model.PaymentStatus) (*model.Payment, error) {
	q := c.db.WithContext(ctx).
		Where("payment_invoice_id = ? AND payment_method = ?", invoiceID, model.PaymentMethodGateway)
	if status != nil {
		q = q.Where("payment_status = ?", *status)
	}
	var p model.Payment
	if err := q.Order("payment_id DESC").Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// QueryStatus asks the gateway about the latest gateway payment of the
// invoice. Failures are returned as-is for the caller to retry.
func (c *Checkout) QueryStatus(ctx context.Context, invoiceID uint64, clientIP string) (*gwModel.GatewayQueryResult, error) {
	p, err := c.latestGatewayPayment(ctx, invoiceID, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoGatewayPayment.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10))
	}
	if err != nil {
		return nil, err
	}
	req := gwModel.QueryRequest{
		TxnRef:          strconv.FormatUint(invoiceID, 10),
		TransactionDate: gwModel.FormatTimestamp(p.PaymentCreatedAt, c.gateway.Config().Location),
		OrderInfo:       "Truy van giao dich " + strconv.FormatUint(invoiceID, 10),
		ClientIP:        clientIP,
	}
	if p.PaymentTransactionCode != nil {
		req.TransactionNo = *p.PaymentTransactionCode
	}
	return c.gateway.QueryTransactionStatus(ctx, req)
}

// RefundInput: nil Amount refunds the whole settled payment.
type RefundInput struct {
	Amount    *decimal.Decimal
	CreatedBy string
	ClientIP  string
}

// Refund asks the gateway to refund the latest settled gateway payment.
// The ledger is not touched; a refund is reconciled by an administrator.
func (c *Checkout) Refund(ctx context.Context, invoiceID uint64, in RefundInput) (*gwModel.GatewayRefundResult, error) {
	settled := model.PaymentStatusSettled
	p, err := c.latestGatewayPayment(ctx, invoiceID, &settled)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSettledPayment.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10))
	}
	if err != nil {
		return nil, err
	}

	amount := p.PaymentAmount
	txType := gwModel.RefundFull
	if in.Amount != nil {
		if in.Amount.GreaterThan(p.PaymentAmount) {
			return nil, ErrRefundExceedsPayment.WithField("amount").
				WithDetail("%s > %s", in.Amount.String(), p.PaymentAmount.String())
		}
		if !in.Amount.Equal(p.PaymentAmount) {
			amount = *in.Amount
			txType = gwModel.RefundPartial
		}
	}

	req := gwModel.RefundRequest{
		TxnRef:          strconv.FormatUint(invoiceID, 10),
		Amount:          amount,
		TransactionType: txType,
		TransactionDate: gwModel.FormatTimestamp(p.PaymentCreatedAt, c.gateway.Config().Location),
		CreatedBy:       in.CreatedBy,
		OrderInfo:       "Hoan tien hoa don " + strconv.FormatUint(invoiceID, 10),
		ClientIP:        in.ClientIP,
	}
	if p.PaymentTransactionCode != nil {
		req.TransactionNo = *p.PaymentTransactionCode
	}

	started := time.Now()
	res, err := c.gateway.Refund(ctx, req)
	if err != nil {
		return nil, err
	}
	c.log.Info("refund requested",
		zap.Uint64("invoice_id", invoiceID),
		zap.Uint64("payment_id", p.PaymentID),
		zap.String("amount", amount.String()),
		zap.String("type", txType),
		zap.Bool("success", res.IsSuccess),
		zap.Duration("took", time.Since(started)))
	return res, nil
}
