package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
)

// ParseRole accepts the lower-case wire form of a role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClient, RoleEmployee:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	return string(r)
}

// User is immutable once registered. Password holds either a bcrypt hash or,
// for snapshots written before hashing was introduced, the plain credential.
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
}
