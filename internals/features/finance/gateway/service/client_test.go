package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormitory_backend/internals/features/finance/gateway/model"
	"dormitory_backend/internals/features/finance/gateway/securehash"
)

const testSecret = "TESTSECRET"

func newTestClient(apiURL string) *Client {
	c := NewClient(Config{
		PaymentURL:   "https://sandbox.gateway.test/paymentv2/vpcpay.html",
		APIURL:       apiURL,
		MerchantCode: "DORM01",
		Secret:       testSecret,
		Algorithm:    securehash.SHA512,
		Locale:       "vn",
		Currency:     "VND",
		Timeout:      2 * time.Second,
		Location:     time.UTC,
	}, nil)
	c.now = func() time.Time { return time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC) }
	c.requestID = func() string { return "req123" }
	return c
}

func paymentRequest() model.PaymentURLRequest {
	return model.PaymentURLRequest{
		InvoiceRef: "42",
		Amount:     decimal.RequireFromString("1500000"),
		ReturnURL:  "https://dorm.example/api/payments/gateway/return",
		ClientIP:   "10.1.2.3",
		OrderInfo:  "Thanh toán hóa đơn 42",
	}
}

func TestBuildPaymentURLIsSignedAndComplete(t *testing.T) {
	c := newTestClient("")
	raw, err := c.BuildPaymentURL(paymentRequest())
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.gateway.test", u.Host)
	assert.True(t, strings.HasSuffix(u.RawQuery, "&vnp_SecureHash="+u.Query().Get("vnp_SecureHash")), "signature is the last parameter")

	q := securehash.FromValues(u.Query())
	assert.Equal(t, "150000000", q[model.FieldAmount])
	assert.Equal(t, "DORM01", q[model.FieldMerchantCode])
	assert.Equal(t, "pay", q[model.FieldCommand])
	assert.Equal(t, "VND", q[model.FieldCurrency])
	assert.Equal(t, "vn", q[model.FieldLocale])
	assert.Equal(t, "20240510083000", q[model.FieldCreateDate])
	assert.Equal(t, "Thanh toan hoa don 42", q[model.FieldOrderInfo])
	assert.Equal(t, "other", q[model.FieldOrderType])

	sig := q[model.FieldSecureHash]
	assert.True(t, c.VerifyParams(q.Without(model.FieldSecureHash), sig))
}

func TestBuildPaymentURLRejectsBadAmount(t *testing.T) {
	c := newTestClient("")
	for _, amt := range []string{"0", "-10", "0.001"} {
		req := paymentRequest()
		req.Amount = decimal.RequireFromString(amt)
		_, err := c.BuildPaymentURL(req)
		assert.True(t, errors.Is(err, securehash.ErrInvalidAmount), amt)
	}
}

func TestBuildPaymentURLRejectsBadExpiry(t *testing.T) {
	c := newTestClient("")
	req := paymentRequest()
	req.ExpireDate = "2024-05-10 10:00"
	_, err := c.BuildPaymentURL(req)
	assert.True(t, errors.Is(err, model.ErrInvalidDateFormat))

	req.ExpireDate = "20240510100000"
	raw, err := c.BuildPaymentURL(req)
	require.NoError(t, err)
	assert.Contains(t, raw, "vnp_ExpireDate=20240510100000")
}

func signedQueryResponse(code string) model.APIResponse {
	r := model.APIResponse{
		ResponseID:        "resp1",
		Command:           "querydr",
		ResponseCode:      code,
		Message:           "ok",
		MerchantCode:      "DORM01",
		TxnRef:            "42",
		Amount:            "150000000",
		BankCode:          "NCB",
		PayDate:           "20240510083500",
		TransactionNo:     "14000001",
		TransactionType:   "01",
		TransactionStatus: "00",
		OrderInfo:         "Invoice 42",
	}
	r.SecureHash, _ = securehash.Sign(testSecret, securehash.JoinOrdered(r.QuerySignedFields()...), securehash.SHA512)
	return r
}

func queryRequest() model.QueryRequest {
	return model.QueryRequest{
		TxnRef:          "42",
		TransactionDate: "20240510083000",
		OrderInfo:       "Query 42",
		ClientIP:        "127.0.0.1",
	}
}

func TestQueryTransactionStatusVerified(t *testing.T) {
	var got queryBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(signedQueryResponse("00"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.QueryTransactionStatus(context.Background(), queryRequest())
	require.NoError(t, err)
	assert.True(t, res.IsVerified)
	assert.True(t, res.IsSuccess)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(1500000)))
	assert.Equal(t, "14000001", res.TransactionNo)

	// request hash covers the contract field order
	want, _ := securehash.Sign(testSecret, securehash.JoinOrdered(
		"req123", "2.1.0", "querydr", "DORM01", "42", "20240510083000", "20240510083000", "127.0.0.1", "Query 42",
	), securehash.SHA512)
	assert.Equal(t, want, got.SecureHash)
}

func TestQueryTransactionStatusMessageLocale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedQueryResponse("00"))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	res, err := c.QueryTransactionStatus(context.Background(), queryRequest())
	require.NoError(t, err)
	assert.Equal(t, "Yêu cầu thành công", res.Message)

	req := queryRequest()
	req.Locale = model.LocaleEN
	res, err = c.QueryTransactionStatus(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Request successful", res.Message)

	req.Locale = "fr"
	_, err = c.QueryTransactionStatus(context.Background(), req)
	assert.Error(t, err)
}

func TestQueryTransactionStatusTamperedResponseIsNeverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := signedQueryResponse("00")
		resp.Amount = "999900"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).QueryTransactionStatus(context.Background(), queryRequest())
	require.NoError(t, err)
	assert.False(t, res.IsVerified)
	assert.False(t, res.IsSuccess)
	assert.True(t, res.Amount.IsZero())
}

func TestQueryTransactionStatusNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).QueryTransactionStatus(context.Background(), queryRequest())
	assert.True(t, errors.Is(err, ErrGatewayUnavailable))
}

func TestQueryTransactionStatusMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).QueryTransactionStatus(context.Background(), queryRequest())
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestQueryTransactionStatusValidatesRequest(t *testing.T) {
	req := queryRequest()
	req.TransactionDate = "10/05/2024"
	_, err := newTestClient("http://127.0.0.1:1").QueryTransactionStatus(context.Background(), req)
	assert.True(t, errors.Is(err, model.ErrInvalidDateFormat))
}

func refundRequest() model.RefundRequest {
	return model.RefundRequest{
		TxnRef:          "42",
		Amount:          decimal.NewFromInt(500000),
		TransactionType: model.RefundPartial,
		TransactionNo:   "14000001",
		TransactionDate: "20240510083000",
		CreatedBy:       "admin",
		OrderInfo:       "Refund 42",
		ClientIP:        "127.0.0.1",
	}
}

func TestRefundVerifiesEveryResponseCode(t *testing.T) {
	for _, code := range []string{"00", "91", "94"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body refundBody
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "50000000", body.Amount)
			resp := model.APIResponse{
				ResponseID: "r", Command: "refund", ResponseCode: code, Message: "m",
				MerchantCode: "DORM01", TxnRef: "42", Amount: "50000000",
				TransactionNo: "14000001", TransactionType: "03", TransactionStatus: "05",
			}
			resp.SecureHash, _ = securehash.Sign(testSecret, securehash.JoinOrdered(resp.RefundSignedFields()...), securehash.SHA512)
			if code == "94" {
				flip := byte('0')
				if resp.SecureHash[0] == '0' {
					flip = '1'
				}
				resp.SecureHash = string(flip) + resp.SecureHash[1:]
			}
			_ = json.NewEncoder(w).Encode(resp)
		}))

		res, err := newTestClient(srv.URL).Refund(context.Background(), refundRequest())
		srv.Close()
		require.NoError(t, err, code)

		switch code {
		case "00":
			assert.True(t, res.IsVerified)
			assert.True(t, res.IsSuccess)
			assert.True(t, res.Amount.Equal(decimal.NewFromInt(500000)))
		case "91":
			assert.True(t, res.IsVerified)
			assert.False(t, res.IsSuccess)
			assert.Equal(t, "Không tìm thấy giao dịch yêu cầu hoàn trả", res.Message)
		case "94":
			assert.False(t, res.IsVerified)
			assert.False(t, res.IsSuccess)
		}
	}
}

func TestRefundRejectsBadAmount(t *testing.T) {
	req := refundRequest()
	req.Amount = decimal.Zero
	_, err := newTestClient("http://127.0.0.1:1").Refund(context.Background(), req)
	assert.True(t, errors.Is(err, securehash.ErrInvalidAmount))
}
