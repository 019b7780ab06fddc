package ws

import (
	"testing"
	"time"

	"github.com/barterverse-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID uuid.UUID) Claims {
	return Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "barterverse",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestTokenVerifier_Verify(t *testing.T) {
	verifier := NewTokenVerifier(&config.JWTConfig{Secret: testSecret, Issuer: "barterverse"})
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		identity, err := verifier.Verify(signToken(t, validClaims(userID), testSecret))
		require.NoError(t, err)
		assert.Equal(t, userID, identity.UserID)
		assert.Equal(t, "alice", identity.Username)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := verifier.Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := verifier.Verify(signToken(t, validClaims(userID), "other-secret"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims(userID)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := verifier.Verify(signToken(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := validClaims(userID)
		claims.ExpiresAt = nil
		_, err := verifier.Verify(signToken(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims(userID)
		claims.Issuer = "someone-else"
		_, err := verifier.Verify(signToken(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		claims := validClaims(userID)
		claims.Subject = "not-a-uuid"
		_, err := verifier.Verify(signToken(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing username claim", func(t *testing.T) {
		claims := validClaims(userID)
		claims.Username = ""
		_, err := verifier.Verify(signToken(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(userID))
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
