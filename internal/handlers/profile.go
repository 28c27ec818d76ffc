package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/vincent-petithory/dataurl"

	"mediashelf/internal/events"
	"mediashelf/internal/logging"
	"mediashelf/internal/middleware"
	"mediashelf/internal/models"
	"mediashelf/internal/sharing"
	"mediashelf/internal/utils"
)

const (
	avatarDir     = "avatars"
	maxAvatarSize = 2 << 20
)

var avatarTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ProfileHandler lets a shared user read and edit their own profile
type ProfileHandler struct {
	users   *sharing.UserService
	hub     *events.Hub
	dataDir string
}

// NewProfileHandler creates a new profile handler. Avatars are written below dataDir.
func NewProfileHandler(users *sharing.UserService, hub *events.Hub, dataDir string) *ProfileHandler {
	return &ProfileHandler{users: users, hub: hub, dataDir: dataDir}
}

type profileResponse struct {
	*models.SharedUser
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func newProfileResponse(u *models.SharedUser) profileResponse {
	resp := profileResponse{SharedUser: u}
	if u.AvatarPath != "" {
		resp.AvatarURL = "/api/profile/avatar"
	}
	return resp
}

func (h *ProfileHandler) currentUser(c *fiber.Ctx) (*models.SharedUser, error) {
	auth, ok := middleware.GetAuthUser(c)
	if !ok {
		return nil, utils.SendUnauthorizedError(c, "Authentication required")
	}
	user, err := h.users.GetUser(c.UserContext(), auth.ID)
	if err != nil {
		return nil, utils.SendInternalServerError(c, "Failed to load profile")
	}
	if user == nil {
		return nil, utils.SendNotFoundError(c, "User")
	}
	return user, nil
}

// GetProfile returns the caller's profile
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if user == nil {
		return err
	}
	return c.JSON(newProfileResponse(user))
}

// UpdateProfile changes the caller's nickname and/or avatar. The avatar is a
// base64 data URI; an empty string removes it.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if user == nil {
		return err
	}

	var req struct {
		Nickname *string `json:"nickname"`
		Avatar   *string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.SendValidationError(c, "Invalid request body")
	}

	upd := sharing.ProfileUpdate{Nickname: req.Nickname}
	if req.Avatar != nil {
		path, err := h.saveAvatar(user.ID, *req.Avatar)
		if err != nil {
			return utils.SendValidationError(c, err.Error())
		}
		upd.AvatarPath = &path
	}

	updated, err := h.users.UpdateProfile(c.UserContext(), user.ID, upd)
	if errors.Is(err, sharing.ErrInvalidInput) {
		return utils.SendValidationError(c, err.Error())
	}
	if err != nil {
		logging.WithError(err).Error().Str("user_id", user.ID).Msg("Profile update failed")
		return utils.SendInternalServerError(c, "Failed to update profile")
	}
	if updated == nil {
		return utils.SendNotFoundError(c, "User")
	}

	if h.hub != nil {
		h.hub.Broadcast(events.Event{Type: events.TypeProfileUpdated, UserID: updated.ID})
	}
	return c.JSON(newProfileResponse(updated))
}

// GetAvatar serves the caller's avatar image
func (h *ProfileHandler) GetAvatar(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if user == nil {
		return err
	}
	if user.AvatarPath == "" {
		return utils.SendNotFoundError(c, "Avatar")
	}
	if _, err := os.Stat(user.AvatarPath); err != nil {
		return utils.SendNotFoundError(c, "Avatar")
	}
	return c.SendFile(user.AvatarPath)
}

// saveAvatar decodes a data URI into <dataDir>/avatars/<userID>.<ext> and
// removes avatars stored under other extensions. An empty uri clears the avatar.
func (h *ProfileHandler) saveAvatar(userID, uri string) (string, error) {
	dir := filepath.Join(h.dataDir, avatarDir)
	removeAvatars := func(keep string) {
		for _, ext := range avatarTypes {
			if p := filepath.Join(dir, userID+"."+ext); p != keep {
				_ = os.Remove(p)
			}
		}
	}
	if uri == "" {
		removeAvatars("")
		return "", nil
	}

	ext, data, err := decodeDataURI(uri)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New("cannot store avatar")
	}
	path := filepath.Join(dir, userID+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New("cannot store avatar")
	}
	removeAvatars(path)
	return path, nil
}

// decodeDataURI accepts data:<image type>;base64,<payload>
func decodeDataURI(uri string) (ext string, data []byte, err error) {
	// base64 inflates by 4/3; anything longer cannot decode under the cap
	if len(uri) > maxAvatarSize/3*4+512 {
		return "", nil, errors.New("avatar is too large")
	}
	parsed, err := dataurl.DecodeString(uri)
	if err != nil || parsed.Encoding != dataurl.EncodingBase64 {
		return "", nil, errors.New("avatar must be a base64 data URI")
	}
	mime := strings.ToLower(parsed.ContentType())
	ext, ok := avatarTypes[mime]
	if !ok {
		return "", nil, errors.New("unsupported avatar type " + mime)
	}
	if len(parsed.Data) == 0 {
		return "", nil, errors.New("avatar is empty")
	}
	if len(parsed.Data) > maxAvatarSize {
		return "", nil, errors.New("avatar is too large")
	}
	return ext, parsed.Data, nil
}
