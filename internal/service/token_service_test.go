package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret-32-bytes-long!!!!!!!", time.Hour, "test-issuer")

	token, expiresAt, err := svc.Generate("ops@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestJWTTokenService_Validate_WrongSecret(t *testing.T) {
	svc := NewJWTTokenService("secret-one", time.Hour, "test-issuer")
	other := NewJWTTokenService("secret-two", time.Hour, "test-issuer")

	token, _, err := svc.Generate("admin")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_WrongIssuer(t *testing.T) {
	svc := NewJWTTokenService("shared-secret", time.Hour, "issuer-a")
	other := NewJWTTokenService("shared-secret", time.Hour, "issuer-b")

	token, _, err := svc.Generate("admin")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Expired(t *testing.T) {
	svc := NewJWTTokenService("shared-secret", -time.Minute, "test-issuer")

	token, _, err := svc.Generate("admin")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_Validate_Garbage(t *testing.T) {
	svc := NewJWTTokenService("shared-secret", time.Hour, "test-issuer")

	_, err := svc.Validate("not.a.jwt")
	assert.Error(t, err)
}
