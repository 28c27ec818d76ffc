package tokenauth

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUserToken_Shape(t *testing.T) {
	issuer := NewIssuer("machine-1", []byte("secret"))
	token, err := issuer.NewUserToken()
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 32)
	assert.Len(t, parts[2], 64)
	assert.NoError(t, NewValidator().ValidateUserToken(token))
}

func TestAccessToken_Shape(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewIssuer("machine-1", []byte("secret"))
	issuer.Now = fixedClock(now)

	token := issuer.NewAccessToken("ut", "user-42", []string{"READ_ONLY", "EDIT"})
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Equal(t, "user-42", parts[0])
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), parts[1])

	// different permissions produce a different signature
	other := issuer.NewAccessToken("ut", "user-42", []string{"FULL"})
	assert.NotEqual(t, token, other)
}

func TestValidate_ExpiryBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := &Validator{Now: fixedClock(now)}
	ms := func(d time.Duration) string {
		return strconv.FormatInt(now.Add(d).UnixMilli(), 10)
	}

	userToken := func(ts string) string { return ts + ".abcdef0123.0123abcd" }
	accessToken := func(ts string) string { return "u1." + ts + ".0123abcd" }

	assert.ErrorIs(t, v.ValidateUserToken(userToken(ms(-UserTokenMaxAge-time.Millisecond))), ErrExpired)
	assert.NoError(t, v.ValidateUserToken(userToken(ms(-UserTokenMaxAge+time.Millisecond))))

	assert.ErrorIs(t, v.ValidateAccessToken(accessToken(ms(-AccessTokenMaxAge-time.Millisecond))), ErrExpired)
	assert.NoError(t, v.ValidateAccessToken(accessToken(ms(-AccessTokenMaxAge+time.Millisecond))))

	assert.NoError(t, v.ValidateUserToken(userToken(ms(ClockSkew))))
	assert.ErrorIs(t, v.ValidateUserToken(userToken(ms(ClockSkew+time.Millisecond))), ErrFuture)
	assert.ErrorIs(t, v.ValidateAccessToken(accessToken(ms(time.Hour))), ErrFuture)
}

func TestValidate_LegacyAndMalformed(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateUserToken(strings.Repeat("a", 32)))
	assert.NoError(t, v.ValidateUserToken(strings.Repeat("F", 64)))
	assert.ErrorIs(t, v.ValidateUserToken(strings.Repeat("a", 31)), ErrMalformed)
	assert.NoError(t, v.ValidateAccessToken(strings.Repeat("0", 64)))
	assert.ErrorIs(t, v.ValidateAccessToken(strings.Repeat("0", 63)), ErrMalformed)

	for _, bad := range []string{"", "a.b", "x.zz.yy", "notanumber.abcd.abcd", "1.2.3.4"} {
		assert.Error(t, v.ValidateUserToken(bad), bad)
	}
	assert.ErrorIs(t, v.ValidateAccessToken(".123.abcd"), ErrMalformed)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("abc", "abcd"))
}
