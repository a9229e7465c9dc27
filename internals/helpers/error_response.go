// file: internals/helpers/error_response.go
package helper

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"dormitory_backend/internals/helpers/apperr"
)

// StatusOf maps an apperr kind onto its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindIntegrity:
		return fiber.StatusConflict
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindSecurity:
		return fiber.StatusUnauthorized
	case apperr.KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError turns any service error into the standard error envelope.
// Security and internal errors never echo their detail.
func FromError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JsonError(c, fe.Code, fe.Message)
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return JsonValidationError(c, ValidationErrors(ve))
	}

	ae, ok := apperr.As(err)
	if !ok {
		return JsonError(c, fiber.StatusInternalServerError, "internal error")
	}

	status := StatusOf(ae.Kind)
	resp := ErrorResponse{
		Success:   false,
		Message:   ae.Message,
		ErrorCode: strings.ToUpper(ae.Code),
	}
	switch ae.Kind {
	case apperr.KindValidation:
		resp.Field = ae.Field
		if ae.Detail != "" {
			resp.Message += ": " + ae.Detail
		}
	case apperr.KindIntegrity, apperr.KindNotFound:
		resp.Entity = ae.Entity
	case apperr.KindSecurity:
		resp.Message = "unauthorized"
	case apperr.KindExternal:
		resp.Retryable = true
	default:
		resp.Message = "internal error"
	}
	return c.Status(status).JSON(resp)
}

/* ===============================
   Validator
=================================*/

// NewValidator reports field errors by their json name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func ValidationErrors(ve validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(ve))
	for _, fe := range ve {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[fe.Field()] = append(out[fe.Field()], msg)
	}
	return out
}
