package auth

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Role enumerates account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is a provisioned credential bound to one office.
type Account struct {
	ID         int64
	Identity   string
	SecretHash string
	Role       Role
	Office     string
	CreatedAt  time.Time
}

// NewAccount carries the fields needed to provision an account.
type NewAccount struct {
	Identity string `validate:"required,max=64"`
	Secret   string `validate:"required,min=4,max=72"`
	Role     Role   `validate:"required,oneof=admin user"`
	Office   string `validate:"required,max=64"`
}

// Claims is the decoded content of a session token.
type Claims struct {
	Identity  string
	Role      Role
	Office    string
	ExpiresAt time.Time
}

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Session is returned by a successful login.
type Session struct {
	Token     string
	Identity  string
	Role      Role
	Office    string
	ExpiresAt time.Time
}

// FoldIdentity returns the case-insensitive lookup key for an identity.
func FoldIdentity(identity string) string {
	return cases.Fold().String(strings.TrimSpace(identity))
}
