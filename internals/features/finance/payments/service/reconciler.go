// file: internals/features/finance/payments/service/reconciler.go
package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	database "dormitory_backend/internals/databases"
	gwModel "dormitory_backend/internals/features/finance/gateway/model"
	"dormitory_backend/internals/features/finance/gateway/securehash"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	"dormitory_backend/internals/features/finance/payments/model"
	"dormitory_backend/internals/helpers/apperr"
	"dormitory_backend/internals/observability/metrics"
)

/* =========================================================
   Outcomes
========================================================= */

// Outcome is what one callback did. Success and AlreadyConfirmed are both
// good answers to the gateway but are counted apart.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeFailed           Outcome = "failed"  // gateway reported failure, code recorded
	OutcomePending          Outcome = "pending" // snap still deciding
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeChecksumFailed   Outcome = "checksum_failed"
	OutcomeOrderNotFound    Outcome = "order_not_found"
	OutcomeInvalidAmount    Outcome = "invalid_amount"
	OutcomeUnknownError     Outcome = "unknown_error"
)

// AckCode is the notification acknowledgement for o.
func (o Outcome) AckCode() string {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomePending:
		return gwModel.AckSuccess
	case OutcomeAlreadyConfirmed:
		return gwModel.AckAlreadyConfirmed
	case OutcomeChecksumFailed:
		return gwModel.AckChecksumFailed
	case OutcomeOrderNotFound:
		return gwModel.AckOrderNotFound
	case OutcomeInvalidAmount:
		return gwModel.AckInvalidAmount
	}
	return gwModel.AckUnknownError
}

// Settled reports whether the invoice is paid by this payment, now or
// by an earlier delivery.
func (o Outcome) Settled() bool {
	return o == OutcomeSuccess || o == OutcomeAlreadyConfirmed
}

type Result struct {
	Outcome   Outcome
	InvoiceID uint64
	PaymentID uint64
	Ack       gwModel.Ack
	// RedirectURL is set for the synchronous return channel only.
	RedirectURL string
}

/* =========================================================
   Reconciler
========================================================= */

// CallbackVerifier checks a gateway parameter set against its signature.
type CallbackVerifier interface {
	VerifyParams(signed securehash.Params, signature string) bool
}

// SnapVerifier checks a Snap notification signature.
type SnapVerifier interface {
	Verify(n gwModel.SnapNotification) bool
}

type Reconciler struct {
	db        *gorm.DB
	ledger    *invoiceService.Ledger
	verifier  CallbackVerifier
	snap      SnapVerifier
	resultURL string
	log       *zap.Logger
	now       func() time.Time
}

func NewReconciler(db *gorm.DB, ledger *invoiceService.Ledger, verifier CallbackVerifier, snap SnapVerifier, resultURL string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		db:        db,
		ledger:    ledger,
		verifier:  verifier,
		snap:      snap,
		resultURL: resultURL,
		log:       log.Named("reconciler"),
		now:       time.Now,
	}
}

// settlement is the provider-neutral part of a verified callback.
type settlement struct {
	provider  model.PaymentProvider
	channel   string
	invoiceID uint64
	method    model.PaymentMethod
	orderRef  string // snap: exact order id of the payment
	amount    decimal.Decimal
	success   bool
	txnCode   string
}

/* =========================================================
   Gateway callbacks (return + IPN)
========================================================= */

// HandleCallback verifies and settles one gateway callback. It always
// returns a Result; err is only set for unexpected failures, which are
// also reported as OutcomeUnknownError.
func (r *Reconciler) HandleCallback(ctx context.Context, raw securehash.Params, channel gwModel.Channel) (*Result, error) {
	res := &Result{}
	var (
		cb      gwModel.Callback
		payment *model.Payment
		err     error
	)

	signature := strings.TrimSpace(raw[gwModel.FieldSecureHash])
	signed := raw.Without(gwModel.FieldSecureHash, gwModel.FieldSecureHashType)

	switch {
	case signature == "" || !r.verifier.VerifyParams(signed, signature):
		res.Outcome = OutcomeChecksumFailed
		r.log.Warn("callback signature mismatch",
			zap.String("channel", string(channel)),
			zap.Any("params", map[string]string(raw)))

	default:
		cb, err = gwModel.ParseCallback(raw)
		if err != nil {
			res.Outcome = outcomeForMissing(err)
			err = nil
			break
		}
		invoiceID, perr := cb.InvoiceID()
		if perr != nil {
			res.Outcome = OutcomeOrderNotFound
			break
		}
		res.InvoiceID = invoiceID

		amount, perr := securehash.FromMinorUnits(cb.Amount)
		if perr != nil {
			res.Outcome = OutcomeInvalidAmount
			break
		}

		res.Outcome, payment, err = r.settle(ctx, settlement{
			provider:  model.ProviderGateway,
			channel:   string(channel),
			invoiceID: invoiceID,
			method:    model.PaymentMethodGateway,
			amount:    amount,
			success:   cb.Succeeded(),
			txnCode:   cb.TransactionNo,
		})
	}

	if payment != nil {
		res.PaymentID = payment.PaymentID
	}
	res.Ack = gwModel.NewAck(res.Outcome.AckCode())
	if channel == gwModel.ChannelReturn {
		res.RedirectURL = r.redirectURL(res)
	}

	r.record(ctx, model.ProviderGateway, string(channel), strings.TrimSpace(raw[gwModel.FieldTxnRef]), raw, signature, res, err)
	return res, err
}

func outcomeForMissing(err error) Outcome {
	var field string
	if e, ok := apperr.As(err); ok {
		field = e.Field
	}
	switch field {
	case gwModel.FieldTxnRef:
		return OutcomeOrderNotFound
	case gwModel.FieldAmount:
		return OutcomeInvalidAmount
	}
	return OutcomeUnknownError
}

// redirectURL points the browser at the internal result page. Raw gateway
// fields never travel with it.
func (r *Reconciler) redirectURL(res *Result) string {
	q := url.Values{}
	if res.Outcome.Settled() || res.Outcome == OutcomePending {
		q.Set("status", "success")
	} else {
		q.Set("status", "failed")
	}
	if res.InvoiceID != 0 {
		q.Set("invoiceId", strconv.FormatUint(res.InvoiceID, 10))
	}
	if !res.Outcome.Settled() {
		q.Set("errorMessage", errorClass(res.Outcome))
	}
	sep := "?"
	if strings.Contains(r.resultURL, "?") {
		sep = "&"
	}
	return r.resultURL + sep + q.Encode()
}

func errorClass(o Outcome) string {
	switch o {
	case OutcomeFailed:
		return "payment_failed"
	case OutcomePending:
		return "payment_pending"
	case OutcomeChecksumFailed:
		return "invalid_signature"
	case OutcomeOrderNotFound:
		return "order_not_found"
	case OutcomeInvalidAmount:
		return "invalid_amount"
	}
	return "unknown_error"
}

/* =========================================================
   Snap notifications
========================================================= */

// HandleSnapNotification runs a verified Snap notification through the
// same settlement path.
func (r *Reconciler) HandleSnapNotification(ctx context.Context, n gwModel.SnapNotification) (*Result, error) {
	const channel = "notification"
	res := &Result{}
	var (
		payment *model.Payment
		err     error
	)

	switch {
	case r.snap == nil || !r.snap.Verify(n):
		res.Outcome = OutcomeChecksumFailed
		r.log.Warn("snap signature mismatch", zap.String("order_id", n.OrderID), zap.String("status", n.TransactionStatus))

	default:
		invoiceID, perr := gwModel.ParseSnapOrderID(n.OrderID)
		if perr != nil {
			res.Outcome = OutcomeOrderNotFound
			break
		}
		res.InvoiceID = invoiceID

		gross, perr := n.Gross()
		if perr != nil {
			res.Outcome = OutcomeInvalidAmount
			break
		}

		verdict := n.Verdict()
		if verdict == gwModel.SnapPending {
			res.Outcome = OutcomePending
			break
		}
		res.Outcome, payment, err = r.settle(ctx, settlement{
			provider:  model.ProviderMidtrans,
			channel:   channel,
			invoiceID: invoiceID,
			method:    model.PaymentMethodSnap,
			orderRef:  n.OrderID,
			amount:    gross,
			success:   verdict == gwModel.SnapSuccess,
			txnCode:   n.TransactionID,
		})
	}

	if payment != nil {
		res.PaymentID = payment.PaymentID
	}
	res.Ack = gwModel.NewAck(res.Outcome.AckCode())

	raw := securehash.Params{
		"order_id":           n.OrderID,
		"status_code":        n.StatusCode,
		"gross_amount":       n.GrossAmount,
		"transaction_status": n.TransactionStatus,
		"transaction_id":     n.TransactionID,
		"transaction_time":   n.TransactionTime,
		"payment_type":       n.PaymentType,
		"fraud_status":       n.FraudStatus,
		"settlement_time":    n.SettlementTime,
	}
	r.record(ctx, model.ProviderMidtrans, channel, n.OrderID, raw, n.SignatureKey, res, err)
	return res, err
}

/* =========================================================
   Settlement (steps 3-6, one transaction)
========================================================= */

func (r *Reconciler) settle(ctx context.Context, s settlement) (Outcome, *model.Payment, error) {
	outcome := OutcomeUnknownError
	var payment *model.Payment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Invoice row lock first: concurrent deliveries of the same
		// notification queue here and see the committed state.
		var inv invoiceModel.Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inv, "invoice_id = ?", s.invoiceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = OutcomeOrderNotFound
			return nil
		}
		if err != nil {
			return err
		}

		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("payment_invoice_id = ? AND payment_method = ?", s.invoiceID, s.method)
		if s.orderRef != "" {
			q = q.Where("payment_order_ref = ?", s.orderRef)
		}
		var p model.Payment
		err = q.Order("payment_id DESC").Take(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = OutcomeOrderNotFound
			return nil
		}
		if err != nil {
			return err
		}
		payment = &p

		if !s.amount.Equal(p.PaymentAmount) {
			outcome = OutcomeInvalidAmount
			r.log.Warn("callback amount mismatch",
				zap.Uint64("invoice_id", s.invoiceID),
				zap.Uint64("payment_id", p.PaymentID),
				zap.String("expected", p.PaymentAmount.String()),
				zap.String("got", s.amount.String()))
			return nil
		}

		if inv.InvoiceStatus == invoiceModel.InvoiceStatusPaid || p.PaymentStatus == model.PaymentStatusSettled {
			outcome = OutcomeAlreadyConfirmed
			return nil
		}

		patch := map[string]any{}
		if s.txnCode != "" {
			patch["payment_transaction_code"] = s.txnCode
		}
		if !s.success {
			patch["payment_status"] = model.PaymentStatusFailed
			if err := tx.Model(&p).Updates(patch).Error; err != nil {
				return err
			}
			outcome = OutcomeFailed
			return nil
		}

		paidAt := r.now()
		patch["payment_status"] = model.PaymentStatusSettled
		patch["payment_paid_at"] = paidAt
		if err := tx.Model(&p).Updates(patch).Error; err != nil {
			return err
		}
		if _, err := r.ledger.WithTx(tx).ApplyPayment(ctx, s.invoiceID, p.PaymentAmount); err != nil {
			return err
		}
		p.PaymentStatus = model.PaymentStatusSettled
		p.PaymentPaidAt = &paidAt
		outcome = OutcomeSuccess
		return nil
	})

	if err != nil {
		if database.IsUniqueViolation(err) && r.settledForInvoice(ctx, s) {
			r.log.Warn("transaction code already settled", zap.String("txn_code", s.txnCode), zap.Uint64("invoice_id", s.invoiceID))
			return OutcomeAlreadyConfirmed, payment, nil
		}
		r.log.Error("settlement failed", zap.Uint64("invoice_id", s.invoiceID), zap.Error(err))
		return OutcomeUnknownError, payment, err
	}

	if outcome == OutcomeSuccess {
		r.log.Info("payment settled",
			zap.String("provider", string(s.provider)),
			zap.String("channel", s.channel),
			zap.Uint64("invoice_id", s.invoiceID),
			zap.Uint64("payment_id", payment.PaymentID),
			zap.String("amount", payment.PaymentAmount.String()))
	}
	return outcome, payment, nil
}

// settledForInvoice reports whether the callback's transaction code already
// settled a payment of the same invoice, i.e. the conflict is a redelivery.
func (r *Reconciler) settledForInvoice(ctx context.Context, s settlement) bool {
	if s.txnCode == "" {
		return false
	}
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("payment_transaction_code = ? AND payment_status = ?", s.txnCode, model.PaymentStatusSettled).
		Take(&p).Error
	if err != nil {
		return false
	}
	return p.PaymentInvoiceID == s.invoiceID
}

/* =========================================================
   Event log
========================================================= */

// record writes the audit row in its own statement so rejected callbacks
// are kept even though they never touch the ledger.
func (r *Reconciler) record(ctx context.Context, provider model.PaymentProvider, channel, orderRef string, raw securehash.Params, signature string, res *Result, procErr error) {
	metrics.IncSettlementCallback(string(provider), channel, string(res.Outcome))

	payload := make(datatypes.JSONMap, len(raw))
	for k, v := range raw {
		payload[k] = v
	}
	ev := model.PaymentGatewayEvent{
		GatewayEventProvider:   provider,
		GatewayEventChannel:    channel,
		GatewayEventPayload:    payload,
		GatewayEventVerified:   res.Outcome != OutcomeChecksumFailed,
		GatewayEventOutcome:    string(res.Outcome),
		GatewayEventReceivedAt: r.now(),
	}
	if orderRef != "" {
		ev.GatewayEventOrderRef = &orderRef
	}
	if signature != "" {
		ev.GatewayEventSignature = &signature
	}
	if res.PaymentID != 0 {
		id := res.PaymentID
		ev.GatewayEventPaymentID = &id
	}
	if procErr != nil {
		msg := procErr.Error()
		ev.GatewayEventError = &msg
	}

	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		r.log.Warn("gateway event not recorded", zap.String("outcome", string(res.Outcome)), zap.Error(err))
	}
}
