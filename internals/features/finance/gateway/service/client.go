package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dormitory_backend/internals/features/finance/gateway/model"
	"dormitory_backend/internals/features/finance/gateway/securehash"
	helper "dormitory_backend/internals/helpers"
	"dormitory_backend/internals/helpers/apperr"
	"dormitory_backend/internals/observability/metrics"
)

var (
	ErrGatewayUnavailable = apperr.External("gateway_unavailable", "payment gateway unreachable or answered non-2xx")
	ErrMalformedResponse  = apperr.External("gateway_malformed_response", "payment gateway answered an unreadable body")
)

const (
	opQuery  = "querydr"
	opRefund = "refund"

	orderInfoMaxLen = 255
)

// Config is the immutable merchant configuration of the gateway.
type Config struct {
	PaymentURL   string // hosted payment page
	APIURL       string // query/refund endpoint
	MerchantCode string
	Secret       string
	Algorithm    securehash.Algorithm
	Locale       string
	Currency     string
	Sandbox      bool
	Timeout      time.Duration
	Location     *time.Location
}

type Client struct {
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
	requestID func() string
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Algorithm == "" {
		cfg.Algorithm = securehash.SHA512
	}
	if cfg.Locale == "" {
		cfg.Locale = model.LocaleVN
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		log: log.Named("gateway"),
		now: time.Now,
		requestID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Config returns a copy of the merchant configuration.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) timestamp() string {
	return model.FormatTimestamp(c.now(), c.cfg.Location)
}

/* =========================================================
   Outbound payment URL
========================================================= */

// BuildPaymentURL signs every field sorted by key and appends the
// signature as the last query parameter.
func (c *Client) BuildPaymentURL(req model.PaymentURLRequest) (string, error) {
	minor, err := securehash.ToMinorUnits(req.Amount)
	if err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	params := securehash.Params{
		model.FieldVersion:      model.ProtocolVersion,
		model.FieldCommand:      model.CommandPay,
		model.FieldMerchantCode: c.cfg.MerchantCode,
		model.FieldAmount:       strconv.FormatInt(minor, 10),
		model.FieldCurrency:     c.cfg.Currency,
		model.FieldLocale:       firstNonEmpty(req.Locale, c.cfg.Locale),
		model.FieldClientIP:     req.ClientIP,
		model.FieldTxnRef:       req.InvoiceRef,
		model.FieldOrderInfo:    helper.ASCIIFold(req.OrderInfo, orderInfoMaxLen),
		model.FieldOrderType:    firstNonEmpty(req.OrderType, model.DefaultOrderTy),
		model.FieldReturnURL:    req.ReturnURL,
		model.FieldCreateDate:   firstNonEmpty(req.CreateDate, c.timestamp()),
	}
	if req.ExpireDate != "" {
		params[model.FieldExpireDate] = req.ExpireDate
	}
	if req.BankCode != "" {
		params[model.FieldBankCode] = req.BankCode
	}

	canonical := securehash.Canonicalize(params)
	sig, err := securehash.Sign(c.cfg.Secret, canonical, c.cfg.Algorithm)
	if err != nil {
		return "", err
	}
	return c.cfg.PaymentURL + "?" + canonical + "&" + model.FieldSecureHash + "=" + sig, nil
}

// VerifyParams checks a received parameter set against its signature.
func (c *Client) VerifyParams(signed securehash.Params, signature string) bool {
	return securehash.Verify(c.cfg.Secret, securehash.Canonicalize(signed), c.cfg.Algorithm, signature)
}

/* =========================================================
   Query / refund API
========================================================= */

type queryBody struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	MerchantCode    string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionNo   string `json:"vnp_TransactionNo,omitempty"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	ClientIP        string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

type refundBody struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	MerchantCode    string `json:"vnp_TmnCode"`
	TransactionType string `json:"vnp_TransactionType"`
	TxnRef          string `json:"vnp_TxnRef"`
	Amount          string `json:"vnp_Amount"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionNo   string `json:"vnp_TransactionNo,omitempty"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateBy        string `json:"vnp_CreateBy"`
	CreateDate      string `json:"vnp_CreateDate"`
	ClientIP        string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

// QueryTransactionStatus asks the gateway for one transaction. The answer
// is trusted only when its own signature verifies.
func (c *Client) QueryTransactionStatus(ctx context.Context, req model.QueryRequest) (*model.GatewayQueryResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := queryBody{
		RequestID:       c.requestID(),
		Version:         model.ProtocolVersion,
		Command:         model.CommandQuery,
		MerchantCode:    c.cfg.MerchantCode,
		TxnRef:          req.TxnRef,
		OrderInfo:       helper.ASCIIFold(req.OrderInfo, orderInfoMaxLen),
		TransactionNo:   req.TransactionNo,
		TransactionDate: req.TransactionDate,
		CreateDate:      c.timestamp(),
		ClientIP:        req.ClientIP,
	}
	sig, err := securehash.Sign(c.cfg.Secret, securehash.JoinOrdered(
		body.RequestID, body.Version, body.Command, body.MerchantCode, body.TxnRef,
		body.TransactionDate, body.CreateDate, body.ClientIP, body.OrderInfo,
	), c.cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	body.SecureHash = sig

	resp, err := c.post(ctx, opQuery, body)
	if err != nil {
		return nil, err
	}

	locale := firstNonEmpty(req.Locale, c.cfg.Locale)
	verified := c.verifyOrdered(resp.SecureHash, resp.QuerySignedFields())
	out := &model.GatewayQueryResult{
		IsVerified:   verified,
		ResponseCode: resp.ResponseCode,
		Message:      model.Describe(model.TableQuery, resp.ResponseCode, locale),
	}
	if !verified {
		c.log.Warn("query response signature mismatch", zap.String("txn_ref", req.TxnRef), zap.String("response_code", resp.ResponseCode))
		out.Message = model.Describe(model.TableQuery, "97", locale)
		return out, nil
	}

	out.TxnRef = resp.TxnRef
	out.TransactionNo = resp.TransactionNo
	out.TransactionStatus = resp.TransactionStatus
	out.TransactionType = resp.TransactionType
	out.BankCode = resp.BankCode
	out.PayDate = resp.PayDate
	if resp.Amount != "" {
		if out.Amount, err = securehash.FromMinorUnits(resp.Amount); err != nil {
			return nil, ErrMalformedResponse.Wrap(err)
		}
	}
	out.IsSuccess = resp.ResponseCode == model.CodeSuccess
	return out, nil
}

// Refund asks the gateway to refund a settled transaction, fully (02) or
// partially (03).
func (c *Client) Refund(ctx context.Context, req model.RefundRequest) (*model.GatewayRefundResult, error) {
	minor, err := securehash.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := refundBody{
		RequestID:       c.requestID(),
		Version:         model.ProtocolVersion,
		Command:         model.CommandRefund,
		MerchantCode:    c.cfg.MerchantCode,
		TransactionType: req.TransactionType,
		TxnRef:          req.TxnRef,
		Amount:          strconv.FormatInt(minor, 10),
		OrderInfo:       helper.ASCIIFold(req.OrderInfo, orderInfoMaxLen),
		TransactionNo:   req.TransactionNo,
		TransactionDate: req.TransactionDate,
		CreateBy:        req.CreatedBy,
		CreateDate:      c.timestamp(),
		ClientIP:        req.ClientIP,
	}
	sig, err := securehash.Sign(c.cfg.Secret, securehash.JoinOrdered(
		body.RequestID, body.Version, body.Command, body.MerchantCode, body.TransactionType,
		body.TxnRef, body.Amount, body.TransactionNo, body.TransactionDate, body.CreateBy,
		body.CreateDate, body.ClientIP, body.OrderInfo,
	), c.cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	body.SecureHash = sig

	resp, err := c.post(ctx, opRefund, body)
	if err != nil {
		return nil, err
	}

	locale := firstNonEmpty(req.Locale, c.cfg.Locale)
	// Verified for every response code, not only the success band.
	verified := c.verifyOrdered(resp.SecureHash, resp.RefundSignedFields())
	out := &model.GatewayRefundResult{
		IsVerified:   verified,
		ResponseCode: resp.ResponseCode,
		Message:      model.Describe(model.TableRefund, resp.ResponseCode, locale),
	}
	if !verified {
		c.log.Warn("refund response signature mismatch", zap.String("txn_ref", req.TxnRef), zap.String("response_code", resp.ResponseCode))
		out.Message = model.Describe(model.TableRefund, "97", locale)
		return out, nil
	}

	out.TxnRef = resp.TxnRef
	out.TransactionNo = resp.TransactionNo
	out.TransactionStatus = resp.TransactionStatus
	out.TransactionType = resp.TransactionType
	if resp.Amount != "" {
		if out.Amount, err = securehash.FromMinorUnits(resp.Amount); err != nil {
			return nil, ErrMalformedResponse.Wrap(err)
		}
	}
	out.IsSuccess = resp.ResponseCode == model.CodeSuccess
	return out, nil
}

func (c *Client) verifyOrdered(signature string, fields []string) bool {
	if strings.TrimSpace(signature) == "" {
		return false
	}
	return securehash.Verify(c.cfg.Secret, securehash.JoinOrdered(fields...), c.cfg.Algorithm, signature)
}

// post sends one JSON request. No retries: the caller owns the backoff.
func (c *Client) post(ctx context.Context, op string, body any) (resp model.APIResponse, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayRequest(op, err, time.Since(start)) }()

	timeout := c.cfg.Timeout
	if ctx != nil {
		if err = ctx.Err(); err != nil {
			return resp, ErrGatewayUnavailable.Wrap(err)
		}
		if dl, ok := ctx.Deadline(); ok {
			if left := time.Until(dl); left < timeout {
				timeout = left
			}
		}
	}

	agent := fiber.Post(c.cfg.APIURL)
	agent.JSONEncoder(sonic.Marshal)
	agent.JSON(body)
	agent.Timeout(timeout)
	if err = agent.Parse(); err != nil {
		return resp, ErrGatewayUnavailable.Wrap(err)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		err = ErrGatewayUnavailable.WithDetail("%s", op).Wrap(errs[0])
		return resp, err
	}
	if status < 200 || status >= 300 {
		err = ErrGatewayUnavailable.WithDetail("%s: http %d", op, status)
		return resp, err
	}
	if err = sonic.Unmarshal(raw, &resp); err != nil {
		err = ErrMalformedResponse.WithDetail("%s", op).Wrap(err)
		return resp, err
	}
	if resp.ResponseCode == "" {
		err = ErrMalformedResponse.WithDetail("%s: missing response code", op)
		return resp, err
	}
	return resp, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
