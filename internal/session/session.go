// Package session reads the viewer id from an access token issued by the
// external auth service or by the self-hosted account service.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// BearerToken strips an optional "Bearer " prefix.
func BearerToken(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	if v == "" {
		return "", errors.New("no bearer token")
	}
	return v, nil
}

// SubjectFromToken returns the subject of an access token as the viewer id.
// With a non-empty key the HS256 signature is verified; without one the token
// is only decoded, which is what a client holding no signing secret can do.
// Expiry is checked in both cases.
func SubjectFromToken(token string, key []byte, now time.Time) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	if len(key) > 0 {
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		}, jwt.WithoutClaimsValidation())
		if err != nil || !parsed.Valid {
			return uuid.Nil, errors.New("invalid token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return uuid.Nil, errors.New("malformed token")
		}
	}

	v := jwt.NewValidator(jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(func() time.Time { return now }))
	if err := v.Validate(&claims); err != nil {
		return uuid.Nil, errors.New("token expired or not valid yet")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

// ExpiryFromToken decodes the expiry of an access token without verifying it.
// A token without an exp claim yields the zero time.
func ExpiryFromToken(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.New("malformed token")
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
