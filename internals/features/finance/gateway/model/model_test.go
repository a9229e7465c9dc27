package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormitory_backend/internals/features/finance/gateway/securehash"
)

func TestDescribeFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "Transaction successful", Describe(TablePayment, "00", "en"))
	assert.Equal(t, "Giao dịch thành công", Describe(TablePayment, "00", "vn"))
	assert.Equal(t, "Unknown error", Describe(TablePayment, "XYZ", "en"))
	assert.Equal(t, "Lỗi không xác định", Describe(TableRefund, "1234", "fr"))
	assert.Equal(t, "Transaction not found", Describe(TableQuery, "91", "EN"))
}

func TestLoadCodesRequiresUnknownEntry(t *testing.T) {
	_, err := LoadCodes([]byte("payment:\n  \"00\": { vn: ok, en: ok }\n"))
	assert.Error(t, err)

	c, err := LoadCodes([]byte("payment:\n  \"99\": { vn: loi, en: err }\n"))
	require.NoError(t, err)
	assert.Equal(t, "err", c.Describe(TablePayment, "00", "en"))
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel(" IPN ")
	require.NoError(t, err)
	assert.Equal(t, ChannelNotification, ch)

	ch, err = ParseChannel("return")
	require.NoError(t, err)
	assert.Equal(t, ChannelReturn, ch)

	_, err = ParseChannel("webhook")
	assert.True(t, errors.Is(err, ErrUnknownChannel))
}

func TestParseCallback(t *testing.T) {
	p := securehash.Params{
		FieldTxnRef:            "17",
		FieldAmount:            "50000000",
		FieldResponseCode:      "00",
		FieldTransactionStatus: "00",
		FieldTransactionNo:     "140000",
		FieldSecureHash:        "abc",
		FieldSecureHashType:    "HmacSHA512",
	}
	cb, err := ParseCallback(p)
	require.NoError(t, err)
	assert.True(t, cb.Succeeded())

	id, err := cb.InvoiceID()
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	signed := cb.SignedParams()
	assert.NotContains(t, signed, FieldSecureHash)
	assert.NotContains(t, signed, FieldSecureHashType)
	assert.Equal(t, "17", signed[FieldTxnRef])
	assert.Contains(t, p, FieldSecureHash, "original params untouched")
}

func TestParseCallbackMissingFields(t *testing.T) {
	_, err := ParseCallback(securehash.Params{FieldTxnRef: "1", FieldAmount: "100"})
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestCallbackInvoiceIDRejectsNonNumeric(t *testing.T) {
	for _, ref := range []string{"abc", "-1", "0", "12a"} {
		_, err := Callback{TxnRef: ref}.InvoiceID()
		assert.True(t, errors.Is(err, ErrInvalidOrderRef), ref)
	}
}

func TestCallbackSucceeded(t *testing.T) {
	assert.False(t, Callback{ResponseCode: "24"}.Succeeded())
	assert.False(t, Callback{ResponseCode: "00", TransactionStatus: "02"}.Succeeded())
	assert.True(t, Callback{ResponseCode: "00"}.Succeeded())
}

func TestPaymentURLRequestValidate(t *testing.T) {
	ok := PaymentURLRequest{
		InvoiceRef: "9",
		Amount:     decimal.NewFromInt(100000),
		ReturnURL:  "https://dorm.example/api/payments/gateway/return",
		ClientIP:   "10.0.0.1",
		OrderInfo:  "Invoice 9",
	}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.ExpireDate = "2024-01-01"
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidDateFormat))

	bad = ok
	bad.ClientIP = "not-an-ip"
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidRequest))

	bad = ok
	bad.InvoiceRef = "INV-9"
	assert.True(t, errors.Is(bad.Validate(), ErrInvalidRequest))
}

func TestRefundRequestValidate(t *testing.T) {
	r := RefundRequest{
		TxnRef:          "9",
		Amount:          decimal.NewFromInt(1000),
		TransactionType: RefundFull,
		TransactionDate: "20240105103000",
		CreatedBy:       "admin",
		OrderInfo:       "Refund 9",
		ClientIP:        "127.0.0.1",
	}
	require.NoError(t, r.Validate())

	r.TransactionType = "01"
	assert.True(t, errors.Is(r.Validate(), ErrInvalidRequest))
}

func TestValidateTimestamp(t *testing.T) {
	assert.NoError(t, ValidateTimestamp("d", "20240229235959"))
	for _, bad := range []string{"", "2024010110", "20241301000000", "2024010100000a", "20230229000000"} {
		assert.True(t, errors.Is(ValidateTimestamp("d", bad), ErrInvalidDateFormat), bad)
	}
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2024, 3, 1, 17, 30, 5, 0, time.UTC)
	assert.Equal(t, "20240302003005", FormatTimestamp(ts, loc))
}

func TestNewAck(t *testing.T) {
	assert.Equal(t, Ack{RspCode: "00", Message: "Confirm Success"}, NewAck(AckSuccess))
	assert.Equal(t, AckUnknownError, NewAck("zz").RspCode)
}
