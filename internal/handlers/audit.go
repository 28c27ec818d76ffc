package handlers

import (
	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/utils"
)

const defaultAuditLimit = 100

// AuditHandler exposes the audit log of the shared library
type AuditHandler struct {
	store *library.Store
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(store *library.Store) *AuditHandler {
	return &AuditHandler{store: store}
}

// GetAuditLogs returns the newest entries first. limit=0 returns all of them.
func (h *AuditHandler) GetAuditLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultAuditLimit)
	if limit < 0 {
		return utils.SendValidationError(c, "limit cannot be negative")
	}
	return c.JSON(fiber.Map{"data": h.store.AuditLogs(limit)})
}

// ClearAuditLogs empties the audit log, leaving a single clear entry behind
func (h *AuditHandler) ClearAuditLogs(c *fiber.Ctx) error {
	if err := h.store.ClearAuditLogs(c.UserContext()); err != nil {
		return sendStoreError(c, err, "clear audit logs")
	}
	return c.JSON(fiber.Map{"success": true})
}
