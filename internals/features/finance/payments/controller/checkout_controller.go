// file: internals/features/finance/payments/controller/checkout_controller.go
package controller

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	dto "dormitory_backend/internals/features/finance/payments/dto"
	model "dormitory_backend/internals/features/finance/payments/model"
	svc "dormitory_backend/internals/features/finance/payments/service"
	helper "dormitory_backend/internals/helpers"
)

type PaymentController struct {
	DB        *gorm.DB
	Checkout  *svc.Checkout
	Validator *validator.Validate
}

func NewPaymentController(db *gorm.DB, checkout *svc.Checkout) *PaymentController {
	return &PaymentController{DB: db, Checkout: checkout, Validator: helper.NewValidator()}
}

func parseID(c *fiber.Ctx, param string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Params(param)), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, param+" tidak valid")
	}
	return id, nil
}

func (h *PaymentController) bind(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	return h.Validator.Struct(out)
}

// POST /invoices/:id/checkout
func (h *PaymentController) StartCheckout(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.CheckoutRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}

	var res *svc.CheckoutResult
	if req.Provider == dto.ProviderSnap {
		res, err = h.Checkout.StartSnapCheckout(c.UserContext(), id, req.CustomerInput(), req.PayerID)
	} else {
		res, err = h.Checkout.StartGatewayCheckout(c.UserContext(), id, c.IP(), req.PayerID)
	}
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonCreated(c, "checkout dibuat", res)
}

// GET /payments/:invoiceId/status
func (h *PaymentController) QueryStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "invoiceId")
	if err != nil {
		return helper.FromError(c, err)
	}
	res, err := h.Checkout.QueryStatus(c.UserContext(), id, c.IP())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "ok", res)
}

// POST /payments/:invoiceId/refund
func (h *PaymentController) Refund(c *fiber.Ctx) error {
	id, err := parseID(c, "invoiceId")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.RefundRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	res, err := h.Checkout.Refund(c.UserContext(), id, svc.RefundInput{
		Amount:    req.Amount,
		CreatedBy: helper.Actor(c),
		ClientIP:  c.IP(),
	})
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "refund diproses", res)
}

/* =======================================================================
   Reads
======================================================================= */

// GET /payments?invoice_id=&status=&page=&per_page=
func (h *PaymentController) List(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).Model(&model.Payment{})
	if v := strings.TrimSpace(c.Query("invoice_id")); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invoice_id tidak valid")
		}
		q = q.Where("payment_invoice_id = ?", id)
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		st, err := model.ParsePaymentStatus(v)
		if err != nil {
			return helper.FromError(c, err)
		}
		q = q.Where("payment_status = ?", st)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return helper.FromError(c, err)
	}
	paging := helper.ResolvePaging(c, 20, 200)
	var rows []model.Payment
	if err := q.Order("payment_id DESC").Offset(paging.Offset).Limit(paging.Limit).Find(&rows).Error; err != nil {
		return helper.FromError(c, err)
	}
	pg := helper.BuildPagination(total, paging, len(rows))
	return helper.JsonList(c, "ok", dto.FromPayments(rows), &pg)
}

// GET /payment-events?provider=&outcome=&order_ref=&page=&per_page=
func (h *PaymentController) ListGatewayEvents(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).Model(&model.PaymentGatewayEvent{})
	if v := strings.TrimSpace(c.Query("provider")); v != "" {
		q = q.Where("gateway_event_provider = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(c.Query("outcome")); v != "" {
		q = q.Where("gateway_event_outcome = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(c.Query("order_ref")); v != "" {
		q = q.Where("gateway_event_order_ref = ?", v)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return helper.FromError(c, err)
	}
	paging := helper.ResolvePaging(c, 20, 200)
	var rows []model.PaymentGatewayEvent
	if err := q.Order("gateway_event_received_at DESC").Offset(paging.Offset).Limit(paging.Limit).Find(&rows).Error; err != nil {
		return helper.FromError(c, err)
	}
	pg := helper.BuildPagination(total, paging, len(rows))
	return helper.JsonList(c, "ok", dto.FromGatewayEvents(rows), &pg)
}
