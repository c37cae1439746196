// Package speaker attributes speech to a small closed set of conversation
// roles without enrolment. It extracts voice features per frame, keeps one
// evolving fingerprint per role and tracks contiguous role segments.
package speaker

import (
	"fmt"
	"strings"
)

// Role is a speaker role label.
type Role int

const (
	RoleUnknown Role = iota
	RoleClinician
	RolePatient
	RoleNurse
	RoleFamily

	numRoles
)

var roleNames = [numRoles]string{
	RoleUnknown:   "unknown",
	RoleClinician: "clinician",
	RolePatient:   "patient",
	RoleNurse:     "nurse",
	RoleFamily:    "family",
}

// Roles lists every role in table order.
func Roles() []Role {
	return []Role{RoleUnknown, RoleClinician, RolePatient, RoleNurse, RoleFamily}
}

func (r Role) String() string {
	if r < 0 || r >= numRoles {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// Title returns the display form of the role name.
func (r Role) Title() string {
	s := r.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// MarshalText encodes the role as its lower-case name.
func (r Role) MarshalText() ([]byte, error) {
	if r < 0 || r >= numRoles {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText parses a role name, ignoring case.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole returns the role with the given name.
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", name)
}
