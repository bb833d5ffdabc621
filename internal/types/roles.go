package types

// Role is the privilege level of a user. Roles form a total order; every
// authorization decision goes through the rank table below instead of
// per-endpoint role lists.
type Role string

const (
	RoleUser     Role = "user"
	RoleListener Role = "listener"
	RoleAdmin    Role = "admin"
	RoleCoowner  Role = "coowner"
	RoleOwner    Role = "owner"
)

var roleRanks = map[Role]int{
	RoleUser:     0,
	RoleListener: 1,
	RoleAdmin:    2,
	RoleCoowner:  3,
	RoleOwner:    4,
}

func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the role's position in the privilege order, or -1 for an
// unknown role.
func (r Role) Rank() int {
	rank, ok := roleRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// Outranks reports whether r is strictly above o in the privilege order.
// Unknown roles rank below everything.
func (r Role) Outranks(o Role) bool {
	return r.Rank() > o.Rank()
}

// CanAssignRole reports whether an actor may set a target's role to newRole.
// The rule is monotonic: the actor must strictly outrank both the target's
// current role and the role being granted.
func CanAssignRole(actor, target, newRole Role) bool {
	if !newRole.Valid() {
		return false
	}
	return actor.Outranks(target) && actor.Outranks(newRole)
}

// CanModerate reports whether an actor may take moderation action against
// a target. Acting on peers or superiors is never allowed.
func CanModerate(actor, target Role) bool {
	return actor.Outranks(target)
}

// Dismissable reports whether the role may be dismissed back to user.
func (r Role) Dismissable() bool {
	return r == RoleListener || r == RoleAdmin
}
