package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/vision-assistant/pkg/assistant"
	"github.com/teslashibe/vision-assistant/pkg/caption"
	"github.com/teslashibe/vision-assistant/pkg/imaging"
	"github.com/teslashibe/vision-assistant/pkg/tts"
)

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	var captionAPI *caption.APIError
	var speechAPI *tts.APIError

	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errNoPhoto), errors.Is(err, imaging.ErrUnsupportedImage):
		return fiber.StatusBadRequest
	case errors.Is(err, imaging.ErrImageTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, assistant.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &captionAPI), errors.As(err, &speechAPI),
		errors.Is(err, caption.ErrProviderUnavailable), errors.Is(err, tts.ErrProviderUnavailable),
		errors.Is(err, caption.ErrEmptyCaption), errors.Is(err, tts.ErrEmptyAudio):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// userMessage is the text shown to users for a status code. Internal error
// details stay in the logs.
func userMessage(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "That file doesn't look like a photo. Try a JPEG or PNG."
	case fiber.StatusNotFound:
		return "That description is no longer available. Take a new photo."
	case fiber.StatusRequestEntityTooLarge:
		return "That photo is too large."
	case fiber.StatusBadGateway, fiber.StatusGatewayTimeout:
		return "The captioning or speech model is unavailable right now. Please try again."
	default:
		return "Something went wrong while describing the photo."
	}
}

// handleError is the fiber error handler for API routes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	s.logError(c, status, err)
	return c.Status(status).JSON(fiber.Map{
		"error":  userMessage(status),
		"detail": err.Error(),
		"status": status,
	})
}

func (s *Server) logError(c *fiber.Ctx, status int, err error) {
	args := []any{"method", c.Method(), "path", c.Path(), "status", status, "error", err}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", args...)
		return
	}
	s.logger.Debug("request rejected", args...)
}
