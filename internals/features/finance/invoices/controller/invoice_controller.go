// file: internals/features/finance/invoices/controller/invoice_controller.go
package controller

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"dormitory_backend/internals/features/finance/invoices/dto"
	"dormitory_backend/internals/features/finance/invoices/export"
	"dormitory_backend/internals/features/finance/invoices/model"
	"dormitory_backend/internals/features/finance/invoices/service"
	helper "dormitory_backend/internals/helpers"
)

/* =======================================================================
   Controller
======================================================================= */

type InvoiceController struct {
	Ledger    *service.Ledger
	Validator *validator.Validate
	Log       *zap.Logger
}

func NewInvoiceController(ledger *service.Ledger, log *zap.Logger) *InvoiceController {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceController{Ledger: ledger, Validator: helper.NewValidator(), Log: log.Named("invoice_http")}
}

func parseID(c *fiber.Ctx, param string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Params(param)), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, param+" tidak valid")
	}
	return id, nil
}

func (h *InvoiceController) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	return h.Validator.Struct(out)
}

func periodFromQuery(c *fiber.Ctx) (model.Period, error) {
	return model.NewPeriod(c.QueryInt("month"), c.QueryInt("year"))
}

/* =======================================================================
   Handlers
======================================================================= */

// POST /invoices
func (h *InvoiceController) Create(c *fiber.Ctx) error {
	var req dto.CreateInvoiceRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	in, err := req.ToInput()
	if err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.CreateInvoice(c.UserContext(), in)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonCreated(c, "invoice dibuat", dto.FromModel(inv))
}

// GET /invoices?month=&year=&source=&page=&per_page=
func (h *InvoiceController) List(c *fiber.Ctx) error {
	p, err := periodFromQuery(c)
	if err != nil {
		return helper.FromError(c, err)
	}
	var src *model.InvoiceSource
	if s := strings.TrimSpace(c.Query("source")); s != "" {
		v, err := model.ParseInvoiceSource(s)
		if err != nil {
			return helper.FromError(c, err)
		}
		src = &v
	}
	rows, err := h.Ledger.ListByPeriod(c.UserContext(), p, src)
	if err != nil {
		return helper.FromError(c, err)
	}

	paging := helper.ResolvePaging(c, 20, 200)
	from := min(paging.Offset, len(rows))
	to := min(from+paging.Limit, len(rows))
	page := dto.FromModels(rows[from:to])
	pg := helper.BuildPagination(int64(len(rows)), paging, len(page))
	return helper.JsonList(c, "ok", page, &pg)
}

// GET /invoices/:id
func (h *InvoiceController) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.Get(c.UserContext(), id)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromModel(inv))
}

// PUT /invoices/:id/items
func (h *InvoiceController) ReplaceItems(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.ReplaceItemsRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	items, override, err := req.ToInput(helper.Actor(c))
	if err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.ReplaceItems(c.UserContext(), id, items, override)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "item invoice diganti", dto.FromModel(inv))
}

// PATCH /invoices/:id
func (h *InvoiceController) UpdateMetadata(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.UpdateMetadataRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.UpdateMetadata(c.UserContext(), id, req.ToInput())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "", dto.FromModel(inv))
}

// POST /invoices/:id/cancel
func (h *InvoiceController) Cancel(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.CancelInvoiceRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.CancelInvoice(c.UserContext(), id, helper.Actor(c), req.Reason)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "invoice dibatalkan", dto.FromModel(inv))
}

// DELETE /invoices/:id
func (h *InvoiceController) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	if err := h.Ledger.DeleteInvoice(c.UserContext(), id); err != nil {
		return helper.FromError(c, err)
	}
	h.Log.Info("invoice deleted", zap.Uint64("invoice_id", id), zap.String("actor", helper.Actor(c)))
	return helper.JsonDeleted(c, "", fiber.Map{"id": id})
}

// POST /invoices/:id/payments
func (h *InvoiceController) RecordManualPayment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.ManualPaymentRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	pay, inv, err := h.Ledger.RecordManualPayment(c.UserContext(), id, req.ToInput())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonCreated(c, "pembayaran dicatat", dto.ManualPaymentResponse{
		PaymentID: pay.PaymentID,
		Amount:    pay.PaymentAmount,
		Method:    pay.PaymentMethod,
		Invoice:   dto.FromModel(inv),
	})
}

/* =======================================================================
   Exports
======================================================================= */

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func attachment(c *fiber.Ctx, mime, name string, body []byte) error {
	c.Set(fiber.HeaderContentType, mime)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Status(fiber.StatusOK).Send(body)
}

// GET /invoices/export?month=&year=
func (h *InvoiceController) ExportPeriod(c *fiber.Ctx) error {
	p, err := periodFromQuery(c)
	if err != nil {
		return helper.FromError(c, err)
	}
	rows, err := h.Ledger.ListByPeriod(c.UserContext(), p, nil)
	if err != nil {
		return helper.FromError(c, err)
	}
	b, err := export.PeriodXLSX(p, rows)
	if err != nil {
		h.Log.Error("xlsx export failed", zap.Error(err))
		return helper.FromError(c, err)
	}
	name := helper.Slugify(fmt.Sprintf("invoices %04d %02d", p.Year, p.Month), 60) + ".xlsx"
	return attachment(c, xlsxMIME, name, b)
}

// GET /invoices/:id/pdf
func (h *InvoiceController) PDF(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return helper.FromError(c, err)
	}
	inv, err := h.Ledger.Get(c.UserContext(), id)
	if err != nil {
		return helper.FromError(c, err)
	}
	b, err := export.InvoicePDF(inv)
	if err != nil {
		h.Log.Error("pdf render failed", zap.Uint64("invoice_id", id), zap.Error(err))
		return helper.FromError(c, err)
	}
	return attachment(c, "application/pdf", fmt.Sprintf("invoice-%d.pdf", id), b)
}
