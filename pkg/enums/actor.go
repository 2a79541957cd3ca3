package enums

// ActorRole is the part an actor plays in a booking command.
type ActorRole string

const (
	ActorRoleRenter ActorRole = "renter"
	ActorRoleOwner  ActorRole = "owner"
	ActorRoleSystem ActorRole = "system"
)

func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleRenter, ActorRoleOwner, ActorRoleSystem:
		return true
	}
	return false
}

// UserRole is carried in access tokens and gates admin routes.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleMember || r == UserRoleAdmin
}
