package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeBookingRequest NotificationType = "booking_request"
	NotificationTypeBookingUpdate  NotificationType = "booking_update"
	NotificationTypePayout         NotificationType = "payout"
	NotificationTypeSystem         NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBookingRequest,
	NotificationTypeBookingUpdate,
	NotificationTypePayout,
	NotificationTypeSystem,
}

func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}
