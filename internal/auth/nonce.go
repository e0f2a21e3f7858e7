package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ActionLogin  = "restricted_login"
	ActionLogout = "restricted_logout"

	nonceAudiencePrefix = "nonce:"
)

// ErrNonceMismatch is returned for any nonce that does not verify.
var ErrNonceMismatch = errors.New("nonce mismatch")

type nonceClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NonceManager issues anti-forgery tokens bound to a session and an action.
type NonceManager struct {
	secret []byte
	ttl    time.Duration
}

// NewNonceManager creates a nonce manager. Nonces carry their own audience so an
// admin token signed with the same secret never verifies as a nonce.
func NewNonceManager(secret string, ttl time.Duration) (*NonceManager, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("nonce secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &NonceManager{secret: []byte(trimmed), ttl: ttl}, nil
}

// Create returns a nonce for action valid for the given session only.
func (m *NonceManager) Create(sessionID, action string) (string, error) {
	if m == nil {
		return "", errors.New("nonce manager is nil")
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(action) == "" {
		return "", errors.New("session id and action are required")
	}
	now := time.Now().UTC()
	claims := nonceClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{nonceAudiencePrefix + action},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks nonce against the session and action it was issued for.
func (m *NonceManager) Verify(nonce, sessionID, action string) error {
	if m == nil {
		return errors.New("nonce manager is nil")
	}
	if strings.TrimSpace(nonce) == "" || sessionID == "" {
		return ErrNonceMismatch
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(nonceAudiencePrefix+action),
		jwt.WithExpirationRequired(),
	)
	claims := &nonceClaims{}
	token, err := parser.ParseWithClaims(nonce, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrNonceMismatch
	}
	if claims.SessionID != sessionID {
		return ErrNonceMismatch
	}
	return nil
}
