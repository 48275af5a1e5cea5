package api

import (
	"errors"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/gofiber/fiber/v3"
)

// StatusFor maps a pipeline error kind to an HTTP status.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidInput:
		return fiber.StatusBadRequest
	case models.KindAnalysis:
		return fiber.StatusUnprocessableEntity
	case models.KindGeneration:
		return fiber.StatusBadGateway
	case models.KindCanceled:
		return fiber.StatusRequestTimeout
	}
	return fiber.StatusInternalServerError
}

func writeError(c fiber.Ctx, err error) error {
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		return c.Status(StatusFor(pe.Kind)).JSON(fiber.Map{"detail": pe.Reason, "kind": pe.Kind})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
}

// ErrorHandler renders errors that escape handlers (body limit, routing) in
// the same shape as pipeline failures.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		return writeError(c, err)
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}
