package serverutils

import (
	"errors"

	"review-rag-be/pkg/rag/ragerr"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to the HTTP status the API answers with.
func StatusFor(err error) int {
	var ie *ragerr.IngestionError
	switch ragerr.KindOf(err) {
	case ragerr.KindInvalidInput, ragerr.KindDataFormat:
		return fiber.StatusBadRequest
	case ragerr.KindTimeout:
		return fiber.StatusGatewayTimeout
	case ragerr.KindConnection, ragerr.KindRetrieval, ragerr.KindGeneration:
		return fiber.StatusBadGateway
	case ragerr.KindIngestion:
		if errors.As(err, &ie) && ie.Accepted > 0 {
			return fiber.StatusBadGateway
		}
		return fiber.StatusInternalServerError
	case ragerr.KindConfiguration:
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware turns errors returned by handlers into ErrorResponse bodies.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// WriteError renders err with the status StatusFor picks. fiber errors
// (404, body parse failures) keep their own code.
func WriteError(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		body := ErrorResponse(fiber.StatusBadRequest, "Validation failed")
		body.Kind = string(ragerr.KindInvalidInput)
		body.Errors = ve.Fields
		return ctx.Status(fiber.StatusBadRequest).JSON(body)
	}

	code := StatusFor(err)
	body := ErrorResponse(code, err.Error())
	body.Kind = string(ragerr.KindOf(err))
	return ctx.Status(code).JSON(body)
}
