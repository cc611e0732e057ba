// Package tokens signs and checks the service tokens carried by intake
// webhooks.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type IntakeClaims struct {
	// Source names the gateway, e.g. "twilio".
	Source string `json:"source,omitempty"`
	jwt.RegisteredClaims
}

func SignIntakeToken(secret []byte, issuer, source string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("intake secret is empty")
	}
	now := time.Now()
	claims := IntakeClaims{
		Source: source,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IntakeClaimsFromToken verifies an HS256 token. A non-empty issuer must
// match the iss claim.
func IntakeClaimsFromToken(tokenStr string, secret []byte, issuer string) (*IntakeClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	var claims IntakeClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}
