// Package authz implements the connection supervisor's authorization
// hooks: "is user permitted", "is host permitted", "is class permitted"
// and "is class injection permitted" predicates consulted during connect
// and during type lookup/injection. Default behavior is conservative:
// local connections only, class access unrestricted but overridable, and
// injection gated by whatever governs class access.
package authz

import "net"

// Authorizer is the full set of authorization hooks the connection
// supervisor and dispatcher consult. Implementations must be safe for
// concurrent use; every method is called on the hot path of a connect or a
// type lookup.
type Authorizer interface {
	// IsUserPermitted reports whether user may open a connection at all.
	IsUserPermitted(user string) bool
	// IsHostPermitted reports whether a peer at addr may connect.
	IsHostPermitted(addr net.Addr) bool
	// IsClassPermitted reports whether className may be looked up,
	// reflected, or instantiated by a connected client.
	IsClassPermitted(className string) bool
	// IsClassInjectionPermitted reports whether a client may inject new
	// bytecode or source defining className.
	IsClassInjectionPermitted(className string) bool
}

// Default is the engine's conservative built-in Authorizer: permits any
// local user and any class, and gates class injection on nothing beyond
// class-permitted (since a blocked class should never be injectable
// either). A deployment wanting host/user restrictions wraps or replaces
// this with its own Authorizer.
type Default struct {
	// AllowRemote, if false (the default), rejects any peer address that
	// is not loopback.
	AllowRemote bool
	// BlockedClasses, if non-nil, denies IsClassPermitted/
	// IsClassInjectionPermitted for any name present.
	BlockedClasses map[string]bool
}

// NewDefault returns the conservative default authorizer: local
// connections only, no blocked classes.
func NewDefault() *Default { return &Default{BlockedClasses: map[string]bool{}} }

func (d *Default) IsUserPermitted(string) bool { return true }

func (d *Default) IsHostPermitted(addr net.Addr) bool {
	if d.AllowRemote {
		return true
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d *Default) IsClassPermitted(className string) bool {
	return !d.BlockedClasses[className]
}

func (d *Default) IsClassInjectionPermitted(className string) bool {
	return d.IsClassPermitted(className)
}
