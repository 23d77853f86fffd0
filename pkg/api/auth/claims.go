// Package auth provides JWT authentication for the ACLGate admin API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims for admin API authentication.
//
// The admin API authenticates a single configured identity, so the claims
// carry only the username. The registered ID claim holds a UUID so
// individual tokens stay distinguishable in logs.
type Claims struct {
	jwt.RegisteredClaims

	// Username is the authenticated admin username.
	Username string `json:"username"`
}
