package handlers

import (
	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/middleware"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// CommentHandler handles comments on media files
type CommentHandler struct {
	store *library.Store
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(store *library.Store) *CommentHandler {
	return &CommentHandler{store: store}
}

// GetComments lists the comments of a media file ordered by timestamp
func (h *CommentHandler) GetComments(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.JSON(fiber.Map{"data": h.store.ListComments(id)})
}

// AddComment posts a comment. The nickname is always the caller's.
func (h *CommentHandler) AddComment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	var req models.CommentInput
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}
	if user, ok := middleware.GetAuthUser(c); ok {
		req.Nickname = user.Nickname
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}

	comment, err := h.store.AddComment(c.UserContext(), id, req)
	if err != nil {
		return sendStoreError(c, err, "add comment")
	}
	if comment == nil {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment removes one comment from a media file
func (h *CommentHandler) DeleteComment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}
	deleted, err := h.store.DeleteComment(c.UserContext(), id, c.Params("commentId"))
	if err != nil {
		return sendStoreError(c, err, "delete comment")
	}
	if !deleted {
		return utils.SendNotFoundError(c, "Comment")
	}
	return c.JSON(fiber.Map{"success": true})
}
