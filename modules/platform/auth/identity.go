package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no bearer token is configured
	ErrNoToken = errors.New("no bearer token configured")
	// ErrNoUserID is returned when no user id can be determined
	ErrNoUserID = errors.New("no user id configured and none found in the token")
)

// Identity is what the client reads from the bearer token.
// The signature is checked by the backend, not here.
type Identity struct {
	UserID    string
	Username  string
	Email     string
	ExpiresAt time.Time
}

// ParseIdentity reads the claims of a bearer token without verifying it
func ParseIdentity(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	id := &Identity{
		UserID:   claimString(claims, "sub"),
		Username: claimString(claims, "preferred_username"),
		Email:    claimString(claims, "email"),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

// Expired returns true if the token carries an expiry before now
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// DisplayName returns the best human name of the identity
func (i *Identity) DisplayName() string {
	for _, name := range []string{i.Username, i.Email, i.UserID} {
		if name != "" {
			return name
		}
	}
	return "anonymous"
}

// ResolveUserID returns the configured user id, or the token subject
func ResolveUserID(configured, token string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured, nil
	}
	id, err := ParseIdentity(token)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", ErrNoUserID
		}
		return "", err
	}
	if id.UserID == "" {
		return "", ErrNoUserID
	}
	return id.UserID, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}
