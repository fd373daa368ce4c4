package enums

import "fmt"

// Role identifies which downstream service materializes a profile for a new
// account. The string values are part of the event wire format.
type Role string

const (
	RolePlayer Role = "PLAYER"
	RoleVenue  Role = "VENUE"
)

var validRoles = []Role{RolePlayer, RoleVenue}

// IsValid reports whether the value is a known role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
