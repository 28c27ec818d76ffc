package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediashelf/internal/models"
	"mediashelf/internal/tokenauth"
)

// ErrInvalidInput marks bad nicknames or permission sets
var ErrInvalidInput = errors.New("invalid input")

const maxNicknameLength = 64

// ProfileUpdate changes what a shared user may edit about themselves
type ProfileUpdate struct {
	Nickname   *string
	AvatarPath *string
}

// UserService manages shared users
type UserService struct {
	db     *gorm.DB
	issuer *tokenauth.Issuer
	now    func() time.Time
}

// NewUserService creates a service backed by db, issuing tokens with issuer
func NewUserService(db *gorm.DB, issuer *tokenauth.Issuer) *UserService {
	return &UserService{db: db, issuer: issuer, now: time.Now}
}

func validatePermissions(perms models.PermissionSet) (models.PermissionSet, error) {
	if len(perms) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
	}
	out := make(models.PermissionSet, 0, len(perms))
	for _, p := range perms {
		parsed, err := models.ParsePermission(string(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out = append(out, parsed)
	}
	return out.Normalized(), nil
}

func validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}
	if len([]rune(nickname)) > maxNicknameLength {
		return "", fmt.Errorf("%w: nickname is longer than %d characters", ErrInvalidInput, maxNicknameLength)
	}
	return nickname, nil
}

// AddUser creates a user with a fresh token pair. The returned user carries both tokens.
func (s *UserService) AddUser(ctx context.Context, nickname string, perms models.PermissionSet) (*models.SharedUser, error) {
	nickname, err := validateNickname(nickname)
	if err != nil {
		return nil, err
	}
	perms, err = validatePermissions(perms)
	if err != nil {
		return nil, err
	}

	userToken, err := s.issuer.NewUserToken()
	if err != nil {
		return nil, err
	}
	user := &models.SharedUser{
		ID:          uuid.NewString(),
		UserToken:   userToken,
		Nickname:    nickname,
		Permissions: perms,
		IsActive:    true,
		CreatedAt:   s.now().UTC(),
	}
	user.AccessToken = s.issuer.NewAccessToken(userToken, user.ID, perms.Strings())

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create shared user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user, oldest first
func (s *UserService) ListUsers(ctx context.Context) ([]models.SharedUser, error) {
	var users []models.SharedUser
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list shared users: %w", err)
	}
	return users, nil
}

func (s *UserService) first(ctx context.Context, query string, arg any) (*models.SharedUser, error) {
	var user models.SharedUser
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns the user with id, or nil
func (s *UserService) GetUser(ctx context.Context, id string) (*models.SharedUser, error) {
	return s.first(ctx, "id = ?", id)
}

// FindByUserToken returns the user owning userToken, or nil
func (s *UserService) FindByUserToken(ctx context.Context, userToken string) (*models.SharedUser, error) {
	if userToken == "" {
		return nil, nil
	}
	return s.first(ctx, "user_token = ?", userToken)
}

// SetActive enables or revokes a user. It reports whether the user exists.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.SharedUser{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update shared user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdatePermissions replaces the scopes of a user and re-issues the access token,
// which is signed over them. A missing user returns nil, nil.
func (s *UserService) UpdatePermissions(ctx context.Context, id string, perms models.PermissionSet) (*models.SharedUser, error) {
	perms, err := validatePermissions(perms)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}

	user.Permissions = perms
	user.AccessToken = s.issuer.NewAccessToken(user.UserToken, user.ID, perms.Strings())
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"permissions":  perms,
		"access_token": user.AccessToken,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}
	return user, nil
}

// UpdateProfile changes nickname and avatar. A missing user returns nil, nil.
func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.SharedUser, error) {
	changes := map[string]any{}
	if upd.Nickname != nil {
		nickname, err := validateNickname(*upd.Nickname)
		if err != nil {
			return nil, err
		}
		changes["nickname"] = nickname
	}
	if upd.AvatarPath != nil {
		changes["avatar_path"] = *upd.AvatarPath
	}

	user, err := s.GetUser(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}
	if len(changes) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetUser(ctx, id)
}

// Touch records the time of the user's latest authenticated request
func (s *UserService) Touch(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.db.WithContext(ctx).Model(&models.SharedUser{}).Where("id = ?", id).Update("last_access_at", &now).Error
}

// DeleteUser removes a user. It reports whether the user existed.
func (s *UserService) DeleteUser(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SharedUser{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete shared user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
