package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// ActorIdentity is what the API needs to know about a caller: who they are
// and whether they may use the admin surface.
type ActorIdentity struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the signed form of ActorIdentity.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) Identity() ActorIdentity {
	return ActorIdentity{UserID: c.UserID, Role: c.Role, JTI: c.ID}
}
