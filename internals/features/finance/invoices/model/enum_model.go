package model

import (
	"strings"

	"dormitory_backend/internals/helpers/apperr"
)

/* =========================================================
   Invoice status
========================================================= */

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

var ErrUnknownInvoiceStatus = apperr.Validation("unknown_invoice_status", "unknown invoice status")

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return st, nil
	}
	return "", ErrUnknownInvoiceStatus.WithField("status").WithDetail("%q", s)
}

// Open reports whether the invoice still expects money.
func (s InvoiceStatus) Open() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusPartiallyPaid
}

/* =========================================================
   Item type
========================================================= */

type ItemType string

const (
	ItemTypeRoomFee     ItemType = "ROOM_FEE"
	ItemTypeElectricity ItemType = "ELECTRICITY"
	ItemTypeWater       ItemType = "WATER"
	ItemTypeParking     ItemType = "PARKING"
	ItemTypeOther       ItemType = "OTHER"
)

var ErrUnknownItemType = apperr.Validation("unknown_item_type", "unknown invoice item type")

func ParseItemType(s string) (ItemType, error) {
	switch t := ItemType(strings.ToUpper(strings.TrimSpace(s))); t {
	case ItemTypeRoomFee, ItemTypeElectricity, ItemTypeWater, ItemTypeParking, ItemTypeOther:
		return t, nil
	}
	return "", ErrUnknownItemType.WithField("type").WithDetail("%q", s)
}

/* =========================================================
   Invoice source (who generated it)
========================================================= */

type InvoiceSource string

const (
	InvoiceSourceRoomFee InvoiceSource = "ROOM_FEE"
	InvoiceSourceParking InvoiceSource = "PARKING"
	InvoiceSourceUtility InvoiceSource = "UTILITY"
	InvoiceSourceManual  InvoiceSource = "MANUAL"
)

var ErrUnknownInvoiceSource = apperr.Validation("unknown_invoice_source", "unknown invoice source")

func ParseInvoiceSource(s string) (InvoiceSource, error) {
	switch src := InvoiceSource(strings.ToUpper(strings.TrimSpace(s))); src {
	case InvoiceSourceRoomFee, InvoiceSourceParking, InvoiceSourceUtility, InvoiceSourceManual:
		return src, nil
	}
	return "", ErrUnknownInvoiceSource.WithField("source").WithDetail("%q", s)
}
