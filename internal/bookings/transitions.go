package bookings

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/db/models"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

// SystemActorID identifies commands issued by the platform itself (admin
// cancellation, scheduled expiry) rather than a booking party.
var SystemActorID = uuid.Nil

// Command names a lifecycle action.
type Command string

const (
	CommandApprove  Command = "approve"
	CommandReject   Command = "reject"
	CommandCancel   Command = "cancel"
	CommandStart    Command = "start"
	CommandComplete Command = "complete"
)

type ledgerEffect int

const (
	effectNone ledgerEffect = iota
	effectRefund
	effectCapture
)

type transition struct {
	from   []enums.BookingStatus
	to     enums.BookingStatus
	actors []enums.ActorRole
	effect ledgerEffect
}

// transitions is the complete set of legal commands. Anything not listed is
// an invalid transition.
var transitions = map[Command]transition{
	CommandApprove: {
		from:   []enums.BookingStatus{enums.BookingStatusPending},
		to:     enums.BookingStatusConfirmed,
		actors: []enums.ActorRole{enums.ActorRoleOwner},
	},
	CommandReject: {
		from:   []enums.BookingStatus{enums.BookingStatusPending},
		to:     enums.BookingStatusRejected,
		actors: []enums.ActorRole{enums.ActorRoleOwner},
		effect: effectRefund,
	},
	CommandCancel: {
		from:   []enums.BookingStatus{enums.BookingStatusPending, enums.BookingStatusConfirmed},
		to:     enums.BookingStatusCancelled,
		actors: []enums.ActorRole{enums.ActorRoleRenter, enums.ActorRoleSystem},
		effect: effectRefund,
	},
	CommandStart: {
		from:   []enums.BookingStatus{enums.BookingStatusConfirmed},
		to:     enums.BookingStatusOngoing,
		actors: []enums.ActorRole{enums.ActorRoleOwner},
	},
	CommandComplete: {
		from:   []enums.BookingStatus{enums.BookingStatusOngoing},
		to:     enums.BookingStatusCompleted,
		actors: []enums.ActorRole{enums.ActorRoleOwner},
		effect: effectCapture,
	},
}

func (t transition) allowsFrom(status enums.BookingStatus) bool {
	for _, candidate := range t.from {
		if candidate == status {
			return true
		}
	}
	return false
}

func (t transition) allowsActor(role enums.ActorRole) bool {
	for _, candidate := range t.actors {
		if candidate == role {
			return true
		}
	}
	return false
}

// resolveActor maps an actor id to its role on booking. ok is false for
// accounts that are not a party to it.
func resolveActor(booking *models.Booking, actorID uuid.UUID) (enums.ActorRole, bool) {
	switch actorID {
	case SystemActorID:
		return enums.ActorRoleSystem, true
	case booking.OwnerID:
		return enums.ActorRoleOwner, true
	case booking.RenterID:
		return enums.ActorRoleRenter, true
	}
	return "", false
}

// Commands lists every lifecycle command.
func Commands() []Command {
	return []Command{CommandApprove, CommandReject, CommandCancel, CommandStart, CommandComplete}
}
