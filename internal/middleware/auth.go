package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/auditlog"
	"mediashelf/internal/logging"
	"mediashelf/internal/metrics"
	"mediashelf/internal/models"
	"mediashelf/internal/tokenauth"
	"mediashelf/internal/utils"
)

const (
	authUserLocal   = "auth_user"
	userTokenHeader = "X-User-Token"
)

// AuthUser is the authenticated remote user of a request
type AuthUser struct {
	ID          string               `json:"id"`
	Nickname    string               `json:"nickname"`
	Permissions models.PermissionSet `json:"permissions"`
	IP          string               `json:"ip"`
}

// UserLookup finds shared users by user token. It returns nil when unknown.
type UserLookup interface {
	FindByUserToken(ctx context.Context, userToken string) (*models.SharedUser, error)
	Touch(ctx context.Context, id string) error
}

// AuthConfig configures the Auth middleware
type AuthConfig struct {
	Users      UserLookup
	Validator  *tokenauth.Validator
	AllowedIPs []string
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
}

// Auth authenticates requests with the access/user token pair. Checks run in order:
// IP allow-list, token presence, token shape and age, user lookup, constant-time
// access token match, active flag.
func Auth(cfg AuthConfig) fiber.Handler {
	if cfg.Validator == nil {
		cfg.Validator = tokenauth.NewValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	allow := parseAllowList(cfg.AllowedIPs)

	reject := func(c *fiber.Ctx, status int, reason string) error {
		cfg.Metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
		cfg.Logger.LogSecurityEvent(c.IP(), reason, c.Path())
		if status == fiber.StatusForbidden {
			return utils.SendForbiddenError(c, "Access denied")
		}
		return utils.SendUnauthorizedError(c, "Invalid or missing token")
	}

	return func(c *fiber.Ctx) error {
		if !allow.permits(c.IP()) {
			return reject(c, fiber.StatusForbidden, "ip_not_allowed")
		}

		accessToken, userToken := extractTokens(c)
		if accessToken == "" || userToken == "" {
			return reject(c, fiber.StatusUnauthorized, "missing_token")
		}
		if err := cfg.Validator.ValidateUserToken(userToken); err != nil {
			return reject(c, fiber.StatusUnauthorized, "invalid_user_token")
		}
		if err := cfg.Validator.ValidateAccessToken(accessToken); err != nil {
			return reject(c, fiber.StatusUnauthorized, "invalid_access_token")
		}

		user, err := cfg.Users.FindByUserToken(c.UserContext(), userToken)
		if err != nil {
			return err
		}
		if user == nil {
			return reject(c, fiber.StatusUnauthorized, "unknown_user")
		}
		if !tokenauth.Equal(user.AccessToken, accessToken) {
			return reject(c, fiber.StatusUnauthorized, "access_token_mismatch")
		}
		if !user.IsActive {
			return reject(c, fiber.StatusForbidden, "user_revoked")
		}

		c.Locals(authUserLocal, &AuthUser{
			ID:          user.ID,
			Nickname:    user.Nickname,
			Permissions: user.Permissions,
			IP:          c.IP(),
		})
		c.Locals(logging.UserIDLocal, user.ID)
		c.SetUserContext(auditlog.WithActor(c.UserContext(), user.Nickname))

		if err := cfg.Users.Touch(c.UserContext(), user.ID); err != nil {
			cfg.Logger.Zerolog().Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last access")
		}
		return c.Next()
	}
}

// extractTokens reads the token pair from headers, falling back to query parameters
// for clients that cannot set headers (websocket, media elements)
func extractTokens(c *fiber.Ctx) (accessToken, userToken string) {
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		accessToken = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	userToken = strings.TrimSpace(c.Get(userTokenHeader))

	if accessToken == "" {
		accessToken = c.Query("accessToken")
	}
	if userToken == "" {
		userToken = c.Query("userToken")
	}
	return accessToken, userToken
}

// GetAuthUser returns the user stored by Auth
func GetAuthUser(c *fiber.Ctx) (*AuthUser, bool) {
	user, ok := c.Locals(authUserLocal).(*AuthUser)
	return user, ok && user != nil
}

type allowList struct {
	ips  map[string]bool
	nets []*net.IPNet
}

func parseAllowList(entries []string) allowList {
	list := allowList{ips: map[string]bool{}}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			list.nets = append(list.nets, n)
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			list.ips[ip.String()] = true
		}
	}
	return list
}

// permits reports whether ip may connect. An empty list permits everyone.
func (l allowList) permits(raw string) bool {
	if len(l.ips) == 0 && len(l.nets) == 0 {
		return true
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	if l.ips[ip.String()] {
		return true
	}
	for _, n := range l.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
