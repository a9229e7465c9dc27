package model

import "github.com/shopspring/decimal"

// GatewayQueryResult is the verified view of a querydr response. Fields
// are only meaningful when IsVerified is true.
type GatewayQueryResult struct {
	IsVerified        bool            `json:"is_verified"`
	IsSuccess         bool            `json:"is_success"`
	ResponseCode      string          `json:"response_code"`
	Message           string          `json:"message"`
	TxnRef            string          `json:"txn_ref"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionNo     string          `json:"transaction_no"`
	TransactionStatus string          `json:"transaction_status"`
	TransactionType   string          `json:"transaction_type"`
	BankCode          string          `json:"bank_code"`
	PayDate           string          `json:"pay_date"`
}

// GatewayRefundResult is the verified view of a refund response.
type GatewayRefundResult struct {
	IsVerified        bool            `json:"is_verified"`
	IsSuccess         bool            `json:"is_success"`
	ResponseCode      string          `json:"response_code"`
	Message           string          `json:"message"`
	TxnRef            string          `json:"txn_ref"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionNo     string          `json:"transaction_no"`
	TransactionStatus string          `json:"transaction_status"`
	TransactionType   string          `json:"transaction_type"`
}

// APIResponse is the raw JSON body returned by the query and refund APIs.
type APIResponse struct {
	ResponseID        string `json:"vnp_ResponseId"`
	Command           string `json:"vnp_Command"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	MerchantCode      string `json:"vnp_TmnCode"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	BankCode          string `json:"vnp_BankCode"`
	PayDate           string `json:"vnp_PayDate"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionType   string `json:"vnp_TransactionType"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	OrderInfo         string `json:"vnp_OrderInfo"`
	PromotionCode     string `json:"vnp_PromotionCode"`
	PromotionAmount   string `json:"vnp_PromotionAmount"`
	SecureHash        string `json:"vnp_SecureHash"`
}

// QuerySignedFields lists the response fields, in contract order, covered
// by a querydr response signature.
func (r APIResponse) QuerySignedFields() []string {
	return []string{
		r.ResponseID, r.Command, r.ResponseCode, r.Message, r.MerchantCode,
		r.TxnRef, r.Amount, r.BankCode, r.PayDate, r.TransactionNo,
		r.TransactionType, r.TransactionStatus, r.OrderInfo,
		r.PromotionCode, r.PromotionAmount,
	}
}

// RefundSignedFields lists the response fields covered by a refund
// response signature.
func (r APIResponse) RefundSignedFields() []string {
	return []string{
		r.ResponseID, r.Command, r.ResponseCode, r.Message, r.MerchantCode,
		r.TxnRef, r.Amount, r.BankCode, r.PayDate, r.TransactionNo,
		r.TransactionType, r.TransactionStatus, r.OrderInfo,
	}
}
