package authz_test

import (
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/pjrmi/pjrmi-go/authz"
)

func TestDefaultRejectsRemoteByDefault(t *testing.T) {
	d := authz.NewDefault()
	local := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}
	remote := &net.TCPAddr{IP: net.IPv4(8, 8, 8, 8), Port: 1234}
	if !d.IsHostPermitted(local) {
		t.Fatalf("expected loopback to be permitted")
	}
	if d.IsHostPermitted(remote) {
		t.Fatalf("expected a remote address to be denied by default")
	}
}

func TestDefaultBlockedClasses(t *testing.T) {
	d := authz.NewDefault()
	if !d.IsClassPermitted("com.example.Foo") {
		t.Fatalf("expected an unlisted class to be permitted by default")
	}
	d.BlockedClasses["com.example.Bar"] = true
	if d.IsClassPermitted("com.example.Bar") {
		t.Fatalf("expected a blocked class to be denied")
	}
	if d.IsClassInjectionPermitted("com.example.Bar") {
		t.Fatalf("expected injection of a blocked class to be denied")
	}
}

func TestJWTUserAuthorizer(t *testing.T) {
	secret := []byte("test-secret")
	a := authz.NewJWTUserAuthorizer(secret)

	good := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := good.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if !a.IsUserPermitted(token) {
		t.Fatalf("expected a validly-signed token to be permitted")
	}
	if a.IsUserPermitted(token + "tampered") {
		t.Fatalf("expected a tampered token to be denied")
	}
	if a.IsUserPermitted("") {
		t.Fatalf("expected an empty token to be denied")
	}
}

func TestPasswordAuthorizer(t *testing.T) {
	a := authz.NewPasswordAuthorizer(map[string][]byte{})
	if err := a.SetPassword("alice", "hunter2"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if !a.IsUserPermitted("alice:hunter2") {
		t.Fatalf("expected the correct password to be permitted")
	}
	if a.IsUserPermitted("alice:wrong") {
		t.Fatalf("expected an incorrect password to be denied")
	}
	if a.IsUserPermitted("bob:hunter2") {
		t.Fatalf("expected an unknown user to be denied")
	}
	if a.IsUserPermitted("malformed") {
		t.Fatalf("expected a credential with no ':' to be denied")
	}
}

func TestCuckooClassFilter(t *testing.T) {
	f := authz.NewCuckooClassFilter(1024, []string{"com.example.Foo"})
	if !f.IsClassPermitted("com.example.Foo") {
		t.Fatalf("expected the seeded class to be permitted")
	}
	if f.IsClassPermitted("com.example.NeverSeen") {
		t.Fatalf("expected an unlisted class to be denied")
	}
	f.Allow("com.example.Bar")
	if !f.IsClassPermitted("com.example.Bar") {
		t.Fatalf("expected a newly-allowed class to be permitted")
	}
	f.Revoke("com.example.Bar")
	if f.IsClassPermitted("com.example.Bar") {
		t.Fatalf("expected a revoked class to be denied")
	}
}
