package handlers

import (
	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// TagHandler handles tag and tag-group requests
type TagHandler struct {
	store *library.Store
}

// NewTagHandler creates a new tag handler
func NewTagHandler(store *library.Store) *TagHandler {
	return &TagHandler{store: store}
}

// GetTags lists every tag
func (h *TagHandler) GetTags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.store.ListTags()})
}

// CreateTag adds a tag, or returns the existing one with the same name
func (h *TagHandler) CreateTag(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		GroupID *int64 `json:"groupId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	tag, err := h.store.CreateTag(c.UserContext(), req.Name, req.GroupID)
	if err != nil {
		return sendStoreError(c, err, "create tag")
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// UpdateTag renames or regroups a tag
func (h *TagHandler) UpdateTag(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid tag ID")
	}
	var req models.TagUpdate
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	tag, err := h.store.UpdateTag(c.UserContext(), id, req)
	if err != nil {
		return sendStoreError(c, err, "update tag")
	}
	if tag == nil {
		return utils.SendNotFoundError(c, "Tag")
	}
	return c.JSON(tag)
}

// DeleteTag removes a tag from the library and from every media file
func (h *TagHandler) DeleteTag(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid tag ID")
	}
	deleted, err := h.store.DeleteTag(c.UserContext(), id)
	if err != nil {
		return sendStoreError(c, err, "delete tag")
	}
	if !deleted {
		return utils.SendNotFoundError(c, "Tag")
	}
	return c.JSON(fiber.Map{"success": true})
}

// AttachMedia tags a batch of media files
func (h *TagHandler) AttachMedia(c *fiber.Ctx) error {
	return h.membership(c, true)
}

// DetachMedia untags a batch of media files
func (h *TagHandler) DetachMedia(c *fiber.Ctx) error {
	return h.membership(c, false)
}

func (h *TagHandler) membership(c *fiber.Ctx, attach bool) error {
	var req membershipRequest
	if err := c.BodyParser(&req); err != nil || req.TagID <= 0 || len(req.MediaIDs) == 0 {
		return utils.SendValidationError(c, "tagId and mediaIds are required")
	}
	if !h.tagExists(req.TagID) {
		return utils.SendNotFoundError(c, "Tag")
	}

	var (
		n   int
		err error
	)
	if attach {
		n, err = h.store.AddTagToMedia(c.UserContext(), req.TagID, req.MediaIDs...)
	} else {
		n, err = h.store.RemoveTagFromMedia(c.UserContext(), req.TagID, req.MediaIDs...)
	}
	if err != nil {
		return sendStoreError(c, err, "update tag membership")
	}
	return c.JSON(fiber.Map{"changed": n})
}

func (h *TagHandler) tagExists(id int64) bool {
	for _, t := range h.store.ListTags() {
		if t.ID == id {
			return true
		}
	}
	return false
}

// GetTagGroups lists every tag group
func (h *TagHandler) GetTagGroups(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.store.ListTagGroups()})
}

// CreateTagGroup adds a tag group
func (h *TagHandler) CreateTagGroup(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	group, err := h.store.CreateTagGroup(c.UserContext(), req.Name, req.Color)
	if err != nil {
		return sendStoreError(c, err, "create tag group")
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// UpdateTagGroup renames or recolors a tag group
func (h *TagHandler) UpdateTagGroup(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid tag group ID")
	}
	var req models.TagGroupUpdate
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	group, err := h.store.UpdateTagGroup(c.UserContext(), id, req)
	if err != nil {
		return sendStoreError(c, err, "update tag group")
	}
	if group == nil {
		return utils.SendNotFoundError(c, "Tag group")
	}
	return c.JSON(group)
}

// DeleteTagGroup removes a tag group; its tags become ungrouped
func (h *TagHandler) DeleteTagGroup(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid tag group ID")
	}
	deleted, err := h.store.DeleteTagGroup(c.UserContext(), id)
	if err != nil {
		return sendStoreError(c, err, "delete tag group")
	}
	if !deleted {
		return utils.SendNotFoundError(c, "Tag group")
	}
	return c.JSON(fiber.Map{"success": true})
}
