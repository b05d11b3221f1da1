// Package auth is the client side of the identity gateway: it verifies
// bearer credentials issued by the external provider and exposes the
// authenticated subject to handlers. Token issuance lives outside this
// service.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/procurehq/orderdesk/internal/apperr"
)

// Subject is the authenticated identity extracted from a verified credential.
type Subject struct {
	ID    string
	Email string
	Name  string
}

// Verifier validates HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a Verifier. issuer is optional; when set, tokens from
// other issuers are rejected.
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// Verify parses and validates tokenString and returns the subject it
// identifies. Expired tokens map to a distinct code so clients can refresh.
func (v *Verifier) Verify(tokenString string) (*Subject, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Authentication("token_expired", "token expired")
		}
		return nil, apperr.Authentication("invalid_token", "invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperr.Authentication("invalid_token", "token has no subject")
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Subject{ID: sub, Email: email, Name: name}, nil
}
