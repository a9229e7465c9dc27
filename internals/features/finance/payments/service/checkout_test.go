package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gwModel "dormitory_backend/internals/features/finance/gateway/model"
	gwService "dormitory_backend/internals/features/finance/gateway/service"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	"dormitory_backend/internals/features/finance/payments/model"
)

const returnURL = "https://dorm.example/api/payments/gateway/return"

type fakeSnapAPI struct {
	enabled bool
	err     error
	calls   int
	amount  decimal.Decimal
}

func (f *fakeSnapAPI) Enabled() bool { return f.enabled }

func (f *fakeSnapAPI) CreateCheckout(invoiceID uint64, amount decimal.Decimal, _ string, _ gwService.CustomerInput) (*gwService.SnapCheckoutResult, error) {
	f.calls++
	f.amount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &gwService.SnapCheckoutResult{
		OrderID:     idStr(invoiceID) + "-20240302080000",
		Token:       "snap-token",
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token",
	}, nil
}

// recordingGateway wraps the real client and keeps the last refund request.
type recordingGateway struct {
	*gwService.Client
	refund *gwModel.RefundRequest
	query  *gwModel.QueryRequest
}

func (g *recordingGateway) Refund(_ context.Context, req gwModel.RefundRequest) (*gwModel.GatewayRefundResult, error) {
	g.refund = &req
	return &gwModel.GatewayRefundResult{IsVerified: true, IsSuccess: true, ResponseCode: "00"}, nil
}

func (g *recordingGateway) QueryTransactionStatus(_ context.Context, req gwModel.QueryRequest) (*gwModel.GatewayQueryResult, error) {
	g.query = &req
	return &gwModel.GatewayQueryResult{IsVerified: true, IsSuccess: true, ResponseCode: "00", TxnRef: req.TxnRef}, nil
}

func TestStartGatewayCheckoutThenSettle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.invoice(t, 1000000)

	_, err := e.ledger.ApplyPayment(ctx, inv.InvoiceID, decimal.NewFromInt(250000))
	require.NoError(t, err)

	co := NewCheckout(e.db, e.gateway, nil, returnURL, zap.NewNop())
	res, err := co.StartGatewayCheckout(ctx, inv.InvoiceID, "203.0.113.7", nil)
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(750000)))

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "75000000", q.Get(gwModel.FieldAmount))
	assert.Equal(t, idStr(inv.InvoiceID), q.Get(gwModel.FieldTxnRef))
	assert.Equal(t, returnURL, q.Get(gwModel.FieldReturnURL))
	assert.NotEmpty(t, q.Get(gwModel.FieldSecureHash))

	var p model.Payment
	require.NoError(t, e.db.First(&p, "payment_id = ?", res.PaymentID).Error)
	assert.Equal(t, model.PaymentStatusPending, p.PaymentStatus)
	require.NotNil(t, p.PaymentPayerID)
	assert.Equal(t, e.studentID, *p.PaymentPayerID)

	settled, err := e.reconciler.HandleCallback(ctx,
		callback(t, idStr(inv.InvoiceID), 75000000, "00", "31337"), gwModel.ChannelNotification)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, settled.Outcome)
	assert.Equal(t, invoiceModel.InvoiceStatusPaid, e.reload(t, inv.InvoiceID).InvoiceStatus)

	_, err = co.StartGatewayCheckout(ctx, inv.InvoiceID, "203.0.113.7", nil)
	assert.True(t, errors.Is(err, ErrInvoiceNotPayable))
}

func TestStartGatewayCheckoutRollsBackOnBadRequest(t *testing.T) {
	e := newEnv(t)
	inv := e.invoice(t, 1000)
	co := NewCheckout(e.db, e.gateway, nil, returnURL, nil)

	_, err := co.StartGatewayCheckout(context.Background(), inv.InvoiceID, "not-an-ip", nil)
	require.Error(t, err)

	var n int64
	require.NoError(t, e.db.Model(&model.Payment{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = co.StartGatewayCheckout(context.Background(), 9999, "203.0.113.7", nil)
	assert.True(t, errors.Is(err, invoiceService.ErrInvoiceNotFound))
}

func TestStartSnapCheckout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.invoice(t, 150000)

	disabled := NewCheckout(e.db, e.gateway, &fakeSnapAPI{}, returnURL, nil)
	_, err := disabled.StartSnapCheckout(ctx, inv.InvoiceID, gwService.CustomerInput{}, nil)
	assert.True(t, errors.Is(err, ErrSnapDisabled))

	snap := &fakeSnapAPI{enabled: true}
	co := NewCheckout(e.db, e.gateway, snap, returnURL, nil)
	res, err := co.StartSnapCheckout(ctx, inv.InvoiceID, gwService.CustomerInput{FirstName: "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "snap-token", res.Token)
	assert.True(t, snap.amount.Equal(decimal.NewFromInt(150000)))

	var p model.Payment
	require.NoError(t, e.db.First(&p, "payment_id = ?", res.PaymentID).Error)
	require.NotNil(t, p.PaymentOrderRef)
	assert.Equal(t, res.OrderRef, *p.PaymentOrderRef)
	assert.Equal(t, model.ProviderMidtrans, p.PaymentProvider)

	snap.err = gwService.ErrSnapCheckout
	_, err = co.StartSnapCheckout(ctx, inv.InvoiceID, gwService.CustomerInput{}, nil)
	assert.True(t, errors.Is(err, gwService.ErrSnapCheckout))

	var failed int64
	require.NoError(t, e.db.Model(&model.Payment{}).
		Where("payment_status = ?", model.PaymentStatusFailed).Count(&failed).Error)
	assert.Equal(t, int64(1), failed)
}

func TestRefundUsesLatestSettledPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.invoice(t, 1000)
	e.pending(t, inv.InvoiceID, model.PaymentMethodGateway, 1000, "")

	gw := &recordingGateway{Client: e.gateway}
	co := NewCheckout(e.db, gw, nil, returnURL, nil)

	_, err := co.Refund(ctx, inv.InvoiceID, RefundInput{CreatedBy: "admin", ClientIP: "10.0.0.1"})
	assert.True(t, errors.Is(err, ErrNoSettledPayment))

	_, err = e.reconciler.HandleCallback(ctx,
		callback(t, idStr(inv.InvoiceID), 100000, "00", "4242"), gwModel.ChannelNotification)
	require.NoError(t, err)

	res, err := co.Refund(ctx, inv.InvoiceID, RefundInput{CreatedBy: "admin", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	require.NotNil(t, gw.refund)
	assert.Equal(t, gwModel.RefundFull, gw.refund.TransactionType)
	assert.Equal(t, "4242", gw.refund.TransactionNo)
	assert.True(t, gw.refund.Amount.Equal(decimal.NewFromInt(1000)))

	part := decimal.NewFromInt(300)
	_, err = co.Refund(ctx, inv.InvoiceID, RefundInput{Amount: &part, CreatedBy: "admin", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, gwModel.RefundPartial, gw.refund.TransactionType)

	tooMuch := decimal.NewFromInt(1001)
	_, err = co.Refund(ctx, inv.InvoiceID, RefundInput{Amount: &tooMuch, CreatedBy: "admin", ClientIP: "10.0.0.1"})
	assert.True(t, errors.Is(err, ErrRefundExceedsPayment))

	// the ledger is untouched by refunds
	assert.Equal(t, invoiceModel.InvoiceStatusPaid, e.reload(t, inv.InvoiceID).InvoiceStatus)
}

func TestQueryStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inv := e.invoice(t, 1000)

	gw := &recordingGateway{Client: e.gateway}
	co := NewCheckout(e.db, gw, nil, returnURL, nil)

	_, err := co.QueryStatus(ctx, inv.InvoiceID, "10.0.0.1")
	assert.True(t, errors.Is(err, ErrNoGatewayPayment))

	e.pending(t, inv.InvoiceID, model.PaymentMethodGateway, 1000, "")
	res, err := co.QueryStatus(ctx, inv.InvoiceID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, idStr(inv.InvoiceID), res.TxnRef)
	require.NotNil(t, gw.query)
	assert.Len(t, gw.query.TransactionDate, 14)
	assert.Empty(t, gw.query.TransactionNo)
}
