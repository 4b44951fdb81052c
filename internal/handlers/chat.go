package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"tca/internal/pipeline"
	"tca/internal/services"
)

// ChatHandler drives the conversation pipeline over HTTP.
type ChatHandler struct {
	manager *pipeline.SessionManager
	history *services.ChatHistoryService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(manager *pipeline.SessionManager, history *services.ChatHistoryService) *ChatHandler {
	return &ChatHandler{manager: manager, history: history}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Mode      string `json:"mode"`
}

// Handle processes one conversation turn.
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	p, err := h.manager.Get(c.UserContext(), req.SessionID, req.Mode)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, pipeline.ErrUnknownMode) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	reply, err := p.Process(c.UserContext(), req.Message)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"session_id": req.SessionID,
		"response":   reply.Response,
		"mode":       reply.Mode,
	})
}

// Clear deletes a session's persisted history and live pipeline.
func (h *ChatHandler) Clear(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")
	if err := h.history.Clear(c.UserContext(), sessionID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	h.manager.Remove(sessionID)
	return c.JSON(fiber.Map{"session_id": sessionID, "cleared": true})
}
