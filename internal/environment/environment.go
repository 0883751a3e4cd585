package environment

import (
	"fmt"

	"golang.org/x/text/cases"
)

// Environment identifies one of the eBay deployment environments. The zero
// value is Unknown, and is rejected by every token operation.
type Environment int

const (
	Unknown Environment = iota
	Production
	Sandbox
)

// All lists the environments that can be configured.
var All = []Environment{Production, Sandbox}

type endpoints struct {
	identifier    string
	name          string
	authorization string
	token         string
}

var known = map[Environment]endpoints{
	Production: {
		identifier:    "api.ebay.com",
		name:          "production",
		authorization: "https://auth.ebay.com/oauth2/authorize",
		token:         "https://api.ebay.com/identity/v1/oauth2/token",
	},
	Sandbox: {
		identifier:    "api.sandbox.ebay.com",
		name:          "sandbox",
		authorization: "https://auth.sandbox.ebay.com/oauth2/authorize",
		token:         "https://api.sandbox.ebay.com/identity/v1/oauth2/token",
	},
}

// Identifier is the stable string used to key cached tokens and to look up
// credentials in configuration. Unknown has an empty identifier.
func (e Environment) Identifier() string {
	return known[e].identifier
}

// Valid reports whether e is one of the defined environments.
func (e Environment) Valid() bool {
	_, ok := known[e]
	return ok
}

// AuthorizationEndpoint is the default user consent URL for the environment.
func (e Environment) AuthorizationEndpoint() string {
	return known[e].authorization
}

// TokenEndpoint is the default token exchange URL for the environment.
func (e Environment) TokenEndpoint() string {
	return known[e].token
}

func (e Environment) String() string {
	if !e.Valid() {
		return "unknown"
	}
	return known[e].name
}

// Parse accepts either the configuration identifier ("api.ebay.com") or the
// short name ("production"), ignoring case.
func Parse(s string) (Environment, error) {
	// a Caser holds state, so one is created per call
	folded := cases.Fold().String(s)
	for _, env := range All {
		def := known[env]
		if folded == def.identifier || folded == def.name {
			return env, nil
		}
	}

	return Unknown, fmt.Errorf("unrecognized environment %q", s)
}
