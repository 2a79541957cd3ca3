package notifications

import (
	"fmt"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/money"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
)

type transitionKey struct {
	from enums.BookingStatus
	to   enums.BookingStatus
}

// content is what a template renders for one recipient.
type content struct {
	kind  enums.NotificationType
	title string
	body  string
}

type template func(event payloads.BookingEvent, recipient enums.ActorRole) content

var templates = map[transitionKey]template{
	{"", enums.BookingStatusPending}: func(e payloads.BookingEvent, _ enums.ActorRole) content {
		return content{
			kind:  enums.NotificationTypeBookingRequest,
			title: "New booking request",
			body:  fmt.Sprintf("A renter requested your equipment from %s to %s for %s.", e.StartDate, e.EndDate, money.Format(e.TotalPriceCents, "")),
		}
	},
	{enums.BookingStatusPending, enums.BookingStatusConfirmed}: func(e payloads.BookingEvent, _ enums.ActorRole) content {
		return content{
			kind:  enums.NotificationTypeBookingUpdate,
			title: "Booking approved",
			body:  fmt.Sprintf("The owner approved your booking starting %s.", e.StartDate),
		}
	},
	{enums.BookingStatusPending, enums.BookingStatusRejected}: func(e payloads.BookingEvent, _ enums.ActorRole) content {
		return content{
			kind:  enums.NotificationTypeBookingUpdate,
			title: "Booking declined",
			body:  fmt.Sprintf("The owner declined your booking. %s has been returned to your wallet.", money.Format(e.TotalPriceCents, "")),
		}
	},
	{enums.BookingStatusPending, enums.BookingStatusCancelled}:   cancelled,
	{enums.BookingStatusConfirmed, enums.BookingStatusCancelled}: cancelled,
	{enums.BookingStatusConfirmed, enums.BookingStatusOngoing}: func(e payloads.BookingEvent, _ enums.ActorRole) content {
		return content{
			kind:  enums.NotificationTypeBookingUpdate,
			title: "Rental started",
			body:  fmt.Sprintf("Your rental is underway until %s.", e.EndDate),
		}
	},
	{enums.BookingStatusOngoing, enums.BookingStatusCompleted}: func(e payloads.BookingEvent, recipient enums.ActorRole) content {
		if recipient == enums.ActorRoleOwner {
			return content{
				kind:  enums.NotificationTypePayout,
				title: "Payout received",
				body:  fmt.Sprintf("The rental is complete and %s was credited to your wallet.", money.Format(e.TotalPriceCents-e.CommissionCents, "")),
			}
		}
		return content{
			kind:  enums.NotificationTypeBookingUpdate,
			title: "Rental completed",
			body:  "Your rental is complete. Thanks for returning the equipment.",
		}
	},
}

func cancelled(e payloads.BookingEvent, recipient enums.ActorRole) content {
	body := "The booking was cancelled."
	switch {
	case e.ActorRole == enums.ActorRoleSystem && recipient == enums.ActorRoleRenter:
		body = fmt.Sprintf("The booking was cancelled by the platform and %s was returned to your wallet.", money.Format(e.TotalPriceCents, ""))
	case e.ActorRole == enums.ActorRoleSystem:
		body = "The booking was cancelled by the platform."
	case recipient == enums.ActorRoleOwner:
		body = fmt.Sprintf("The renter cancelled the booking starting %s.", e.StartDate)
	}
	return content{kind: enums.NotificationTypeBookingUpdate, title: "Booking cancelled", body: body}
}

func fallback(e payloads.BookingEvent, _ enums.ActorRole) content {
	return content{
		kind:  enums.NotificationTypeBookingUpdate,
		title: "Booking updated",
		body:  fmt.Sprintf("Booking %s moved from %s to %s.", e.BookingID, e.FromStatus, e.ToStatus),
	}
}

func render(event payloads.BookingEvent, recipient enums.ActorRole) content {
	tmpl, ok := templates[transitionKey{from: event.FromStatus, to: event.ToStatus}]
	if !ok {
		tmpl = fallback
	}
	return tmpl(event, recipient)
}

func renderPayment(event payloads.WalletPaymentRecordedEvent) content {
	if event.Status == enums.LedgerEntryCompleted {
		return content{
			kind:  enums.NotificationTypeSystem,
			title: "Wallet topped up",
			body:  fmt.Sprintf("%s was added to your wallet.", money.Format(event.AmountCents, "")),
		}
	}
	return content{
		kind:  enums.NotificationTypeSystem,
		title: "Payment failed",
		body:  fmt.Sprintf("A payment of %s could not be completed. Your balance is unchanged.", money.Format(event.AmountCents, "")),
	}
}
