// file: internals/features/finance/payments/controller/callback_controller.go
package controller

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	gwModel "dormitory_backend/internals/features/finance/gateway/model"
	"dormitory_backend/internals/features/finance/gateway/securehash"
	svc "dormitory_backend/internals/features/finance/payments/service"
	helper "dormitory_backend/internals/helpers"
)

/* =======================================================================
   Controller (public, called by the gateway / the payer's browser)
======================================================================= */

type CallbackController struct {
	Reconciler *svc.Reconciler
	Log        *zap.Logger
}

func NewCallbackController(reconciler *svc.Reconciler, log *zap.Logger) *CallbackController {
	if log == nil {
		log = zap.NewNop()
	}
	return &CallbackController{Reconciler: reconciler, Log: log.Named("callback_http")}
}

func queryParams(c *fiber.Ctx) securehash.Params {
	p := securehash.Params{}
	for k, v := range c.Queries() {
		p[k] = v
	}
	return p
}

// GET /payments/gateway/return
// Browser kembali dari gateway; jawab redirect ke halaman hasil.
func (h *CallbackController) Return(c *fiber.Ctx) error {
	res, err := h.Reconciler.HandleCallback(c.UserContext(), queryParams(c), gwModel.ChannelReturn)
	if err != nil {
		h.Log.Error("return callback failed", zap.Error(err))
	}
	if res.RedirectURL == "" {
		return helper.JsonOK(c, string(res.Outcome), fiber.Map{"invoice_id": res.InvoiceID, "outcome": res.Outcome})
	}
	return c.Redirect(res.RedirectURL, fiber.StatusFound)
}

// GET /payments/gateway/ipn
// Notifikasi server-to-server; gateway membaca RspCode dan retry selain 00.
func (h *CallbackController) IPN(c *fiber.Ctx) error {
	res, err := h.Reconciler.HandleCallback(c.UserContext(), queryParams(c), gwModel.ChannelNotification)
	if err != nil {
		h.Log.Error("ipn failed", zap.Error(err))
	}
	return c.Status(fiber.StatusOK).JSON(res.Ack)
}

// POST /payments/snap/notification
func (h *CallbackController) SnapNotification(c *fiber.Ctx) error {
	var n gwModel.SnapNotification
	if err := c.BodyParser(&n); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
	}
	res, err := h.Reconciler.HandleSnapNotification(c.UserContext(), n)
	switch {
	case res.Outcome == svc.OutcomeChecksumFailed:
		return helper.JsonError(c, fiber.StatusUnauthorized, "invalid signature")
	case err != nil:
		// non-2xx makes Snap retry
		h.Log.Error("snap notification failed", zap.String("order_id", n.OrderID), zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "")
	}
	return helper.JsonOK(c, string(res.Outcome), res.Ack)
}
