package model

// Wire field names of the gateway protocol.
const (
	FieldVersion           = "vnp_Version"
	FieldCommand           = "vnp_Command"
	FieldMerchantCode      = "vnp_TmnCode"
	FieldAmount            = "vnp_Amount"
	FieldBankCode          = "vnp_BankCode"
	FieldCreateDate        = "vnp_CreateDate"
	FieldExpireDate        = "vnp_ExpireDate"
	FieldCurrency          = "vnp_CurrCode"
	FieldClientIP          = "vnp_IpAddr"
	FieldLocale            = "vnp_Locale"
	FieldOrderInfo         = "vnp_OrderInfo"
	FieldOrderType         = "vnp_OrderType"
	FieldReturnURL         = "vnp_ReturnUrl"
	FieldTxnRef            = "vnp_TxnRef"
	FieldSecureHash        = "vnp_SecureHash"
	FieldSecureHashType    = "vnp_SecureHashType"
	FieldResponseCode      = "vnp_ResponseCode"
	FieldTransactionNo     = "vnp_TransactionNo"
	FieldTransactionStatus = "vnp_TransactionStatus"
	FieldTransactionType   = "vnp_TransactionType"
	FieldTransactionDate   = "vnp_TransactionDate"
	FieldPayDate           = "vnp_PayDate"
	FieldBankTranNo        = "vnp_BankTranNo"
	FieldCardType          = "vnp_CardType"
	FieldRequestID         = "vnp_RequestId"
	FieldResponseID        = "vnp_ResponseId"
	FieldMessage           = "vnp_Message"
	FieldCreateBy          = "vnp_CreateBy"
	FieldPromotionCode     = "vnp_PromotionCode"
	FieldPromotionAmount   = "vnp_PromotionAmount"
)

const (
	ProtocolVersion = "2.1.0"

	CommandPay     = "pay"
	CommandQuery   = "querydr"
	CommandRefund  = "refund"
	DefaultOrderTy = "other"

	// TimestampLayout is yyyyMMddHHmmss, the only timestamp shape the
	// gateway accepts.
	TimestampLayout = "20060102150405"

	RefundFull    = "02"
	RefundPartial = "03"

	CodeSuccess = "00"
)
