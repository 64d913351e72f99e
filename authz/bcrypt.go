package authz

import "golang.org/x/crypto/bcrypt"

// PasswordAuthorizer is a sample "is user permitted" hook: the connecting
// user string is "name:password", checked against a per-user bcrypt hash.
// Host and class policy are delegated to an embedded Default.
type PasswordAuthorizer struct {
	Default
	Hashes map[string][]byte // user -> bcrypt hash
}

// NewPasswordAuthorizer returns an authorizer backed by the given
// user->bcrypt-hash table.
func NewPasswordAuthorizer(hashes map[string][]byte) *PasswordAuthorizer {
	return &PasswordAuthorizer{Default: Default{BlockedClasses: map[string]bool{}}, Hashes: hashes}
}

// SetPassword stores a freshly-hashed password for user, replacing any
// existing entry.
func (a *PasswordAuthorizer) SetPassword(user, password string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Hashes[user] = h
	return nil
}

// IsUserPermitted expects cred in the form "user:password".
func (a *PasswordAuthorizer) IsUserPermitted(cred string) bool {
	user, password, ok := splitCred(cred)
	if !ok {
		return false
	}
	h, ok := a.Hashes[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(password)) == nil
}

func splitCred(cred string) (user, password string, ok bool) {
	for i := 0; i < len(cred); i++ {
		if cred[i] == ':' {
			return cred[:i], cred[i+1:], true
		}
	}
	return "", "", false
}

var _ Authorizer = (*PasswordAuthorizer)(nil)
