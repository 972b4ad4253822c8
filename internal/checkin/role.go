package checkin

import "fmt"

// Role classifies a realtime connection for room assignment.
// The mapping from role to room is total: every valid Role has exactly one
// room, and unknown role strings are rejected at parse time instead of being
// silently dropped.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleTrainer
	RoleMember
)

const (
	// RoomAdmin receives every tracker event plus the periodic active-set
	// broadcast.
	RoomAdmin = "admin-room"
	// RoomTrainer receives check-in/check-out events.
	RoomTrainer = "trainer-room"
)

// MemberRoom returns the per-member room name for the given user record ID.
func MemberRoom(userID string) string {
	return "member-" + userID
}

// ParseRole converts the wire role string into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "trainer":
		return RoleTrainer, nil
	case "member":
		return RoleMember, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTrainer:
		return "trainer"
	case RoleMember:
		return "member"
	default:
		return "unknown"
	}
}

// Room returns the broadcast room a connection with this role belongs to.
// Members get a private per-user room; staff share role-wide rooms.
func (r Role) Room(userID string) string {
	switch r {
	case RoleAdmin:
		return RoomAdmin
	case RoleTrainer:
		return RoomTrainer
	case RoleMember:
		return MemberRoom(userID)
	default:
		return ""
	}
}
