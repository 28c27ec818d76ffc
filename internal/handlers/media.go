package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/middleware"
	"mediashelf/internal/models"
	"mediashelf/internal/pagination"
	"mediashelf/internal/utils"
)

// MediaHandler handles media-related requests
type MediaHandler struct {
	store *library.Store
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(store *library.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// GetMedia lists media files. Supported filters: folderId, tagId, type, search
// and trash (only, include).
func (h *MediaHandler) GetMedia(c *fiber.Ctx) error {
	filter := models.MediaFilter{
		FolderID: optionalID(c, "folderId"),
		TagID:    optionalID(c, "tagId"),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	switch t := models.FileType(c.Query("type")); t {
	case "":
	case models.FileTypeVideo, models.FileTypeAudio:
		filter.FileType = t
	default:
		return utils.SendValidationError(c, "type must be video or audio")
	}
	switch c.Query("trash") {
	case "only":
		filter.OnlyDeleted = true
	case "include":
		filter.IncludeDeleted = true
	}

	page, pageSize := pagination.GetPaginationParams(c)
	items, meta := pagination.Slice(h.store.ListMediaFiles(filter), page, pageSize)

	return c.JSON(fiber.Map{
		"data":       items,
		"pagination": meta,
	})
}

// GetMediaFile returns one media file with tags, folders, comments and its
// parent/children projection
func (h *MediaHandler) GetMediaFile(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	details, found := h.store.GetMediaFileWithDetails(id)
	if !found || details.IsDeleted {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.JSON(details)
}

// UpdateMediaFile applies a partial update
func (h *MediaHandler) UpdateMediaFile(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	var req models.MediaUpdate
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}

	updated, err := h.store.UpdateMediaFile(c.UserContext(), id, req)
	if err != nil {
		return sendStoreError(c, err, "update media")
	}
	if updated == nil {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.JSON(updated)
}

// DeleteMediaFile moves a media file to the trash, or removes it for good when
// permanent=true. Permanent deletion requires FULL.
func (h *MediaHandler) DeleteMediaFile(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}

	if c.QueryBool("permanent") {
		if !middleware.HasPermission(c, models.PermissionFull) {
			return utils.SendInsufficientPermission(c, "Permanent deletion requires FULL")
		}
		deleted, err := h.store.DeleteMediaFilePermanently(c.UserContext(), id)
		if err != nil {
			return sendStoreError(c, err, "delete media")
		}
		if !deleted {
			return utils.SendNotFoundError(c, "Media")
		}
		return c.JSON(fiber.Map{"success": true, "permanent": true})
	}

	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}
	n, err := h.store.TrashMediaFiles(c.UserContext(), []int64{id})
	if err != nil {
		return sendStoreError(c, err, "trash media")
	}
	return c.JSON(fiber.Map{"success": true, "trashed": n})
}

// RestoreMedia takes a batch of media out of the trash
func (h *MediaHandler) RestoreMedia(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return utils.SendValidationError(c, "ids are required")
	}
	n, err := h.store.RestoreMediaFiles(c.UserContext(), req.IDs)
	if err != nil {
		return sendStoreError(c, err, "restore media")
	}
	return c.JSON(fiber.Map{"restored": n})
}

// SetParent groups a media file under another one; a null parentId ungroups it
func (h *MediaHandler) SetParent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	var req struct {
		ParentID *int64 `json:"parentId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}

	found, err := h.store.UpdateParentID(c.UserContext(), id, req.ParentID)
	if err != nil {
		return sendStoreError(c, err, "set parent")
	}
	if !found {
		return utils.SendNotFoundError(c, "Media")
	}
	m, _ := h.store.GetMediaFile(id)
	return c.JSON(m)
}

// MarkPlayed records a playback of the media file
func (h *MediaHandler) MarkPlayed(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	if !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}
	m, err := h.store.MarkPlayed(c.UserContext(), id)
	if err != nil {
		return sendStoreError(c, err, "mark played")
	}
	if m == nil {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.JSON(m)
}

// GetDuplicates lists the files sharing a duplicate key with the given one.
// criteria is a comma list of name, size, duration and modified.
func (h *MediaHandler) GetDuplicates(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid media ID")
	}
	criteria, err := models.ParseDuplicateCriteria(c.Query("criteria"))
	if err != nil {
		return utils.SendValidationError(c, err.Error())
	}
	dups, found := h.store.FindDuplicatesOf(id, criteria)
	if !found || !h.store.IsActive(id) {
		return utils.SendNotFoundError(c, "Media")
	}
	return c.JSON(fiber.Map{"data": dups})
}
