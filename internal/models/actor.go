package models

// Role is the authorization role of an actor
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a role string from the booking API to a Role; unknown values become guest
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleGuest
	}
}

// Actor is the identity a request is made on behalf of
type Actor struct {
	Role Role   `json:"role"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Guest returns the anonymous actor
func Guest() Actor {
	return Actor{Role: RoleGuest}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsGuest() bool {
	return a.Role != RoleUser && a.Role != RoleAdmin
}
