package handlers

import (
	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// FolderHandler handles folder requests
type FolderHandler struct {
	store *library.Store
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(store *library.Store) *FolderHandler {
	return &FolderHandler{store: store}
}

// GetFolders lists every folder in display order
func (h *FolderHandler) GetFolders(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.store.ListFolders()})
}

// CreateFolder adds a folder at the end of its siblings
func (h *FolderHandler) CreateFolder(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		ParentID    *int64 `json:"parentId"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	folder, err := h.store.CreateFolder(c.UserContext(), req.Name, req.ParentID, req.Description)
	if err != nil {
		return sendStoreError(c, err, "create folder")
	}
	return c.Status(fiber.StatusCreated).JSON(folder)
}

// UpdateFolder renames, describes or moves a folder
func (h *FolderHandler) UpdateFolder(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid folder ID")
	}
	var req models.FolderUpdate
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	folder, err := h.store.UpdateFolder(c.UserContext(), id, req)
	if err != nil {
		return sendStoreError(c, err, "update folder")
	}
	if folder == nil {
		return utils.SendNotFoundError(c, "Folder")
	}
	return c.JSON(folder)
}

// DeleteFolder removes a folder; its children move up one level
func (h *FolderHandler) DeleteFolder(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.SendValidationError(c, "Invalid folder ID")
	}
	deleted, err := h.store.DeleteFolder(c.UserContext(), id)
	if err != nil {
		return sendStoreError(c, err, "delete folder")
	}
	if !deleted {
		return utils.SendNotFoundError(c, "Folder")
	}
	return c.JSON(fiber.Map{"success": true})
}

// ReorderFolders assigns the display order from the id list
func (h *FolderHandler) ReorderFolders(c *fiber.Ctx) error {
	var req idsRequest
	if err := c.BodyParser(&req); err != nil || len(req.IDs) == 0 {
		return utils.SendValidationError(c, "ids are required")
	}
	if err := h.store.ReorderFolders(c.UserContext(), req.IDs); err != nil {
		return sendStoreError(c, err, "reorder folders")
	}
	return c.JSON(fiber.Map{"data": h.store.ListFolders()})
}

// AttachMedia puts a batch of media files into a folder
func (h *FolderHandler) AttachMedia(c *fiber.Ctx) error {
	return h.membership(c, true)
}

// DetachMedia takes a batch of media files out of a folder
func (h *FolderHandler) DetachMedia(c *fiber.Ctx) error {
	return h.membership(c, false)
}

func (h *FolderHandler) membership(c *fiber.Ctx, attach bool) error {
	var req membershipRequest
	if err := c.BodyParser(&req); err != nil || req.FolderID <= 0 || len(req.MediaIDs) == 0 {
		return utils.SendValidationError(c, "folderId and mediaIds are required")
	}
	if !h.folderExists(req.FolderID) {
		return utils.SendNotFoundError(c, "Folder")
	}

	var (
		n   int
		err error
	)
	if attach {
		n, err = h.store.AddMediaToFolder(c.UserContext(), req.FolderID, req.MediaIDs...)
	} else {
		n, err = h.store.RemoveMediaFromFolder(c.UserContext(), req.FolderID, req.MediaIDs...)
	}
	if err != nil {
		return sendStoreError(c, err, "update folder membership")
	}
	return c.JSON(fiber.Map{"changed": n})
}

func (h *FolderHandler) folderExists(id int64) bool {
	for _, f := range h.store.ListFolders() {
		if f.ID == id {
			return true
		}
	}
	return false
}
