package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ifc-service/internal/conversion"
	"ifc-service/internal/services"
)

// Error kinds reported next to service-level failures.
const (
	KindInvalidInput = "INVALID_INPUT"
	KindNotFound     = "NOT_FOUND"
	KindConflict     = "CONFLICT"
	KindTooLarge     = "TOO_LARGE"
	KindInternal     = "INTERNAL"
)

// statusFor maps an error to an HTTP status and a kind string.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrUnsupportedType):
		return fiber.StatusBadRequest, KindInvalidInput
	case errors.Is(err, services.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge, KindTooLarge
	case errors.Is(err, services.ErrAlreadyExists), errors.Is(err, services.ErrBusy), errors.Is(err, services.ErrNotConverted):
		return fiber.StatusConflict, KindConflict
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrMissingOnDisk):
		return fiber.StatusNotFound, KindNotFound
	}

	var cErr *conversion.Error
	if errors.As(err, &cErr) && cErr.Kind == conversion.KindPreconditionNotMet {
		if cErr.Op == conversion.ReasonSourceMissing {
			return fiber.StatusUnprocessableEntity, string(cErr.Kind)
		}
		return fiber.StatusInternalServerError, string(cErr.Kind)
	}
	switch kind := conversion.KindOf(err); kind {
	case conversion.KindExternalToolFailed, conversion.KindArtifactNotProduced:
		return fiber.StatusBadGateway, string(kind)
	case conversion.KindNoMatchingIdentifier:
		return fiber.StatusNotFound, string(kind)
	case conversion.KindStorageFailed:
		return fiber.StatusInternalServerError, string(kind)
	}
	return fiber.StatusInternalServerError, KindInternal
}

// errorBody is the JSON body of every failed request.
func errorBody(err error) (int, fiber.Map) {
	status, kind := statusFor(err)
	return status, fiber.Map{"error": true, "message": err.Error(), "kind": kind}
}

func respondError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	status, body := errorBody(err)
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error(msg, fields...)
	} else {
		logger.Info(msg, fields...)
	}
	return c.Status(status).JSON(body)
}
