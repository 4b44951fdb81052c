package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tca/internal/services"
)

// ContextHandler exposes the personalization context view.
type ContextHandler struct {
	personalization *services.PersonalizationService
}

// NewContextHandler creates a new context handler
func NewContextHandler(personalization *services.PersonalizationService) *ContextHandler {
	return &ContextHandler{personalization: personalization}
}

// Fetch returns the personalization snapshot for a session.
func (h *ContextHandler) Fetch(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")
	snapshot := h.personalization.Fetch(c.UserContext(), sessionID)
	return c.JSON(snapshot)
}

type saveFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SaveField upserts one personalization field.
func (h *ContextHandler) SaveField(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")
	var req saveFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.personalization.SaveField(c.UserContext(), sessionID, req.Field, req.Value); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, services.ErrUnsupportedField) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "field": req.Field, "saved": true})
}
