package authz

import (
	"github.com/golang-jwt/jwt/v4"
)

// JWTUserAuthorizer is a sample "is user permitted" hook: the connecting
// user string is treated as a signed bearer token, and the connection is
// permitted iff the token verifies against Secret and has not expired.
// Host and class policy are delegated to an embedded Default.
type JWTUserAuthorizer struct {
	Default
	Secret []byte
}

// NewJWTUserAuthorizer returns an authorizer that accepts a user string
// only when it verifies as an HMAC-signed JWT under secret.
func NewJWTUserAuthorizer(secret []byte) *JWTUserAuthorizer {
	return &JWTUserAuthorizer{Default: Default{BlockedClasses: map[string]bool{}}, Secret: secret}
}

func (a *JWTUserAuthorizer) IsUserPermitted(token string) bool {
	if token == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	return err == nil && parsed.Valid
}

var _ Authorizer = (*JWTUserAuthorizer)(nil)
