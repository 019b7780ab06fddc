package ws

import (
	"errors"
	"fmt"

	"github.com/barterverse-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Identity is the authenticated principal extracted from a handshake token
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Claims is the expected token payload. Subject carries the user ID.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HMAC-signed handshake tokens issued by the auth
// service
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier from JWT configuration
func NewTokenVerifier(cfg *config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// Verify parses and validates a token string and returns the identity it
// carries
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user ID", ErrInvalidToken)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}

	return &Identity{UserID: userID, Username: claims.Username}, nil
}
