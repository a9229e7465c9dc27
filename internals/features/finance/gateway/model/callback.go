package model

import (
	"strconv"
	"strings"

	"dormitory_backend/internals/features/finance/gateway/securehash"
	"dormitory_backend/internals/helpers/apperr"
)

// Channel is how a callback reached us.
type Channel string

const (
	ChannelReturn       Channel = "return" // browser redirected back, synchronous
	ChannelNotification Channel = "ipn"    // server-to-server, asynchronous
)

var (
	ErrUnknownChannel  = apperr.Validation("unknown_channel", "unknown callback channel")
	ErrMissingField    = apperr.Validation("missing_callback_field", "callback is missing a required field")
	ErrInvalidOrderRef = apperr.Validation("invalid_order_ref", "order reference is not a numeric invoice id")
)

func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelReturn:
		return ChannelReturn, nil
	case ChannelNotification:
		return ChannelNotification, nil
	}
	return "", ErrUnknownChannel.WithField("channel").WithDetail("%q", s)
}

// Callback is the typed view of a return/notification parameter set. Raw
// keeps every received field, because the signature covers all of them.
type Callback struct {
	Raw               securehash.Params
	Signature         string
	TxnRef            string
	Amount            string
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	BankTranNo        string
	CardType          string
	PayDate           string
	OrderInfo         string
}

// ParseCallback only checks presence; numeric/amount checks happen after
// the signature has been verified.
func ParseCallback(p securehash.Params) (Callback, error) {
	cb := Callback{
		Raw:               p,
		Signature:         p[FieldSecureHash],
		TxnRef:            strings.TrimSpace(p[FieldTxnRef]),
		Amount:            strings.TrimSpace(p[FieldAmount]),
		ResponseCode:      strings.TrimSpace(p[FieldResponseCode]),
		TransactionStatus: strings.TrimSpace(p[FieldTransactionStatus]),
		TransactionNo:     strings.TrimSpace(p[FieldTransactionNo]),
		BankCode:          p[FieldBankCode],
		BankTranNo:        p[FieldBankTranNo],
		CardType:          p[FieldCardType],
		PayDate:           p[FieldPayDate],
		OrderInfo:         p[FieldOrderInfo],
	}
	for field, v := range map[string]string{
		FieldSecureHash:   cb.Signature,
		FieldTxnRef:       cb.TxnRef,
		FieldAmount:       cb.Amount,
		FieldResponseCode: cb.ResponseCode,
	} {
		if v == "" {
			return cb, ErrMissingField.WithField(field)
		}
	}
	return cb, nil
}

// SignedParams is everything the gateway signed: all fields minus the
// signature itself and its type marker.
func (c Callback) SignedParams() securehash.Params {
	return c.Raw.Without(FieldSecureHash, FieldSecureHashType)
}

// InvoiceID parses the order reference, which is the invoice id.
func (c Callback) InvoiceID() (uint64, error) {
	id, err := strconv.ParseUint(c.TxnRef, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidOrderRef.WithField(FieldTxnRef).WithDetail("%q", c.TxnRef)
	}
	return id, nil
}

// Succeeded is true only when both the response code and, if present, the
// transaction status say so.
func (c Callback) Succeeded() bool {
	if c.ResponseCode != CodeSuccess {
		return false
	}
	return c.TransactionStatus == "" || c.TransactionStatus == CodeSuccess
}
