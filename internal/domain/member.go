package domain

// Role is a label for UI emphasis only; the relay grants the host no extra
// authority.
type Role int

const (
	RoleUnset Role = iota
	RoleGuest
	RoleHost
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	}
	return "unset"
}
