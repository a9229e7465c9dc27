package model

// Acknowledgement codes the server answers to an asynchronous
// notification. The gateway retries on anything but AckSuccess.
const (
	AckSuccess          = "00"
	AckOrderNotFound    = "01"
	AckAlreadyConfirmed = "02"
	AckInvalidAmount    = "04"
	AckChecksumFailed   = "97"
	AckUnknownError     = "99"
)

// Ack is the JSON body of a notification acknowledgement.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var ackMessages = map[string]string{
	AckSuccess:          "Confirm Success",
	AckOrderNotFound:    "Order not found",
	AckAlreadyConfirmed: "Order already confirmed",
	AckInvalidAmount:    "Invalid amount",
	AckChecksumFailed:   "Invalid signature",
	AckUnknownError:     "Unknown error",
}

func NewAck(code string) Ack {
	msg, ok := ackMessages[code]
	if !ok {
		return Ack{RspCode: AckUnknownError, Message: ackMessages[AckUnknownError]}
	}
	return Ack{RspCode: code, Message: msg}
}
