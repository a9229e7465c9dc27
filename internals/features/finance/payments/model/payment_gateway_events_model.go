// file: internals/features/finance/payments/model/payment_gateway_events_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payment_gateway_events = log of every callback/notification.
  - many rows per payment (each retry is a row)
  - written in its own statement so rejected callbacks leave a trail
*/

type PaymentGatewayEvent struct {
	GatewayEventID uuid.UUID `json:"gateway_event_id" gorm:"column:gateway_event_id;type:uuid;primaryKey"`

	GatewayEventProvider  PaymentProvider `json:"gateway_event_provider" gorm:"column:gateway_event_provider;type:varchar(20);not null;index:idx_gw_events_provider_ref,priority:1"`
	GatewayEventChannel   string          `json:"gateway_event_channel" gorm:"column:gateway_event_channel;type:varchar(20);not null"`
	GatewayEventOrderRef  *string         `json:"gateway_event_order_ref,omitempty" gorm:"column:gateway_event_order_ref;type:varchar(64);index:idx_gw_events_provider_ref,priority:2"`
	GatewayEventPaymentID *uint64         `json:"gateway_event_payment_id,omitempty" gorm:"column:gateway_event_payment_id;index"`

	// Raw data (debug / replay)
	GatewayEventPayload   datatypes.JSONMap `json:"gateway_event_payload" gorm:"column:gateway_event_payload"`
	GatewayEventSignature *string           `json:"gateway_event_signature,omitempty" gorm:"column:gateway_event_signature;type:text"`
	GatewayEventVerified  bool              `json:"gateway_event_verified" gorm:"column:gateway_event_verified;not null;default:false"`

	// Processing result
	GatewayEventOutcome string  `json:"gateway_event_outcome" gorm:"column:gateway_event_outcome;type:varchar(40);not null"`
	GatewayEventError   *string `json:"gateway_event_error,omitempty" gorm:"column:gateway_event_error;type:text"`

	GatewayEventReceivedAt time.Time `json:"gateway_event_received_at" gorm:"column:gateway_event_received_at;not null"`
	GatewayEventCreatedAt  time.Time `json:"gateway_event_created_at" gorm:"column:gateway_event_created_at;not null;autoCreateTime"`
}

func (PaymentGatewayEvent) TableName() string { return "payment_gateway_events" }

func (e *PaymentGatewayEvent) BeforeCreate(tx *gorm.DB) error {
	if e.GatewayEventID == uuid.Nil {
		e.GatewayEventID = uuid.New()
	}
	if e.GatewayEventReceivedAt.IsZero() {
		e.GatewayEventReceivedAt = time.Now()
	}
	return nil
}
