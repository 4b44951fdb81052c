package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tca/internal/database"
	"tca/internal/pipeline"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	mongo   *database.MongoDB // nil in fallback mode
	manager *pipeline.SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(mongo *database.MongoDB, manager *pipeline.SessionManager) *HealthHandler {
	return &HealthHandler{mongo: mongo, manager: manager}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	storage := "fallback"
	if h.mongo != nil {
		storage = "mongodb"
		if err := h.mongo.Ping(c.UserContext()); err != nil {
			storage = "mongodb (unreachable)"
		}
	}
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"storage":   storage,
		"sessions":  h.manager.Count(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
