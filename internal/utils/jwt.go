package utils // package utils provides helpers for issuing and reading caller tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/citizen-booking/internal/authscope"
)

// AccessToken is a signed caller JWT along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// CallerClaims are the claims of a caller token.  Subject carries the
// caller reference and Groups the authorization groups it holds.
type CallerClaims struct {
	Groups []authscope.Group `json:"groups"`
	jwt.RegisteredClaims
}

// NewCallerToken signs an HS256 JWT for ref holding groups, valid for ttl.
func NewCallerToken(secret, ref string, groups []authscope.Group, ttl time.Duration) (AccessToken, error) {
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return AccessToken{}, err
		}
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := CallerClaims{
		Groups: groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ErrNoGroups is returned for a valid token that grants nothing.
var ErrNoGroups = errors.New("token carries no groups")

// ParseCallerToken verifies raw with secret and returns the caller it
// describes.  Only HMAC signatures are accepted.
func ParseCallerToken(secret, raw string) (authscope.Caller, error) {
	var claims CallerClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return authscope.Caller{}, err
	}
	if !tok.Valid {
		return authscope.Caller{}, jwt.ErrTokenInvalidClaims
	}
	if len(claims.Groups) == 0 {
		return authscope.Caller{}, ErrNoGroups
	}
	for _, g := range claims.Groups {
		if err := g.Validate(); err != nil {
			return authscope.Caller{}, err
		}
	}
	return authscope.Caller{Ref: claims.Subject, Groups: claims.Groups}, nil
}
