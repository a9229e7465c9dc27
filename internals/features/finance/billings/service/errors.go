package service

import "dormitory_backend/internals/helpers/apperr"

var (
	ErrFeeRateNotFound     = apperr.NotFound("fee_rate_not_found", "fee rate not found")
	ErrNoActiveRate        = apperr.NotFound("no_active_fee_rate", "no active fee rate for this fee type")
	ErrDuplicateActiveRate = apperr.Integrity("duplicate_active_fee_rate", "an active open-ended fee rate already exists for this fee type")
	ErrInvalidFeeRate      = apperr.Validation("invalid_fee_rate", "fee rate is invalid")

	ErrRoomNotFound        = apperr.Integrity("room_not_found", "room does not exist")
	ErrReadingNotFound     = apperr.NotFound("meter_reading_not_found", "meter reading not found")
	ErrInvalidReading      = apperr.Validation("invalid_meter_reading", "meter reading is invalid")
	ErrNegativeConsumption = apperr.Validation("negative_consumption", "meter index is lower than the previous reading")

	ErrPeriodAlreadyBilled = apperr.Integrity("period_already_billed", "invoices for this period and source already exist")
	ErrInvalidSchedule     = apperr.Validation("invalid_billing_schedule", "billing cron expression is invalid")
)
