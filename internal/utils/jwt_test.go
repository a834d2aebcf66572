package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, RoleCustomer, 15)
	require.NoError(t, err)

	c, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: 42, Role: RoleCustomer}, c)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	good, err := NewAccessToken("s3cret", 42, RoleCustomer, 15)
	require.NoError(t, err)
	expired, err := NewAccessToken("s3cret", 42, RoleCustomer, -1)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": RoleOwner, "exp": good.Exp.Unix()}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": good.Token,
		"garbage":      "not.a.token",
	} {
		_, err := ParseAccessToken("other", raw)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseAccessToken("s3cret", noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_NumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7, "role": RoleOwner, "exp": 4102444800}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	c, err := ParseAccessToken("s3cret", raw)
	require.NoError(t, err)
	assert.EqualValues(t, 7, c.UserID)
	assert.Equal(t, RoleOwner, c.Role)
}
