// Package tokenauth issues and validates the user/access token pair used by remote
// clients, and provides the symmetric crypto primitives behind the host secret.
package tokenauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// UserTokenMaxAge bounds how old a user token timestamp may be
	UserTokenMaxAge = 30 * 24 * time.Hour
	// AccessTokenMaxAge bounds how old an access token timestamp may be
	AccessTokenMaxAge = 90 * 24 * time.Hour
	// ClockSkew is how far in the future a timestamp may lie
	ClockSkew = 5 * time.Minute

	saltBytes = 16
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
	ErrFuture    = errors.New("token timestamp is in the future")
)

var (
	legacyUserToken   = regexp.MustCompile(`^[0-9a-fA-F]{32,64}$`)
	legacyAccessToken = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	hexPart           = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// Issuer creates tokens. Now defaults to time.Now.
type Issuer struct {
	hardwareKey []byte
	hostSecret  []byte
	Now         func() time.Time
}

// NewIssuer creates an issuer keyed by the machine's hardware id and the host secret
func NewIssuer(hardwareID string, hostSecret []byte) *Issuer {
	sum := sha256.Sum256([]byte(hardwareID))
	return &Issuer{
		hardwareKey: sum[:],
		hostSecret:  hostSecret,
		Now:         time.Now,
	}
}

func (i *Issuer) millis() string {
	return strconv.FormatInt(i.Now().UnixMilli(), 10)
}

// NewUserToken returns timestamp.salt.signature
func (i *Issuer) NewUserToken() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	payload := i.millis() + "." + hex.EncodeToString(salt)
	return payload + "." + sign(i.hardwareKey, payload), nil
}

// NewAccessToken returns userId.timestamp.signature, signed over the user token and permissions
func (i *Issuer) NewAccessToken(userToken, userID string, permissions []string) string {
	ts := i.millis()
	payload := strings.Join([]string{userToken, strings.Join(permissions, ","), userID, ts}, "|")
	return userID + "." + ts + "." + sign(i.hostSecret, payload)
}

func sign(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validator checks token shape and age. Signatures are not recomputed; the stored
// token comparison establishes authenticity.
type Validator struct {
	Now func() time.Time
}

// NewValidator creates a validator using the wall clock
func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

// ValidateUserToken accepts timestamp.salt.signature or a bare 32-64 char hex string
func (v *Validator) ValidateUserToken(token string) error {
	if legacyUserToken.MatchString(token) {
		return nil
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || !hexPart.MatchString(parts[1]) || !hexPart.MatchString(parts[2]) {
		return ErrMalformed
	}
	return v.checkAge(parts[0], UserTokenMaxAge)
}

// ValidateAccessToken accepts userId.timestamp.signature or a bare 64 char hex string
func (v *Validator) ValidateAccessToken(token string) error {
	if legacyAccessToken.MatchString(token) {
		return nil
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || !hexPart.MatchString(parts[2]) {
		return ErrMalformed
	}
	return v.checkAge(parts[1], AccessTokenMaxAge)
}

func (v *Validator) checkAge(raw string, maxAge time.Duration) error {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return ErrMalformed
	}
	now := v.Now().UnixMilli()
	if ms > now+ClockSkew.Milliseconds() {
		return ErrFuture
	}
	if now-ms > maxAge.Milliseconds() {
		return ErrExpired
	}
	return nil
}

// Equal compares two tokens in constant time
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
