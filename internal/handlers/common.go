package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/library"
	"mediashelf/internal/logging"
	"mediashelf/internal/utils"
)

// membershipRequest attaches or detaches media to a tag or folder
type membershipRequest struct {
	TagID    int64   `json:"tagId"`
	FolderID int64   `json:"folderId"`
	MediaIDs []int64 `json:"mediaIds"`
}

// idsRequest carries a batch of media ids
type idsRequest struct {
	IDs []int64 `json:"ids"`
}

// paramID parses a positive int64 route parameter
func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// optionalID parses an int64 query parameter; absent or invalid yields nil
func optionalID(c *fiber.Ctx, name string) *int64 {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// sendStoreError maps store errors onto the API error codes
func sendStoreError(c *fiber.Ctx, err error, action string) error {
	switch {
	case errors.Is(err, library.ErrInvalidInput), errors.Is(err, library.ErrCycle):
		return utils.SendValidationError(c, err.Error())
	default:
		logging.WithError(err).Error().
			Str("route", c.Route().Path).
			Msg(action + " failed")
		return utils.SendInternalServerError(c, "Failed to "+action)
	}
}
