package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// ParseTokenClaims decodes a JWT payload without verifying the signature.
// The backend is the signing authority; the client only inspects claims.
func ParseTokenClaims(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token", errors.CategoryBadInput)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "unable to decode token")
	}

	return claims, nil
}

// TokenExpiry extracts the exp claim. The second return is false when the
// token cannot be decoded or carries no expiry.
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims, err := ParseTokenClaims(tokenString)
	if err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// IsRawTokenExpired reports whether a JWT has passed its exp claim at the
// given time. Undecodable tokens and tokens without an expiry count as
// expired, so a corrupt credential never passes a validity gate.
func IsRawTokenExpired(tokenString string, now time.Time) bool {
	exp, ok := TokenExpiry(tokenString)
	if !ok {
		return true
	}
	return !now.Before(exp)
}

// TokenSubject extracts the sub claim, empty when absent.
func TokenSubject(tokenString string) string {
	claims, err := ParseTokenClaims(tokenString)
	if err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
