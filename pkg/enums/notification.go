package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeLowStock    NotificationType = "low_stock"
	NotificationTypeOrderUpdate NotificationType = "order_update"
)

// broadcast types carry no recipient and are visible to every staff user.
var notificationBroadcast = map[NotificationType]bool{
	NotificationTypeLowStock:    true,
	NotificationTypeOrderUpdate: false,
}

func (n NotificationType) IsValid() bool {
	_, ok := notificationBroadcast[n]
	return ok
}

// Broadcast reports whether notifications of this type are stored without
// a recipient.
func (n NotificationType) Broadcast() bool {
	return notificationBroadcast[n]
}

func ParseNotificationType(value string) (NotificationType, error) {
	n := NotificationType(value)
	if !n.IsValid() {
		return "", fmt.Errorf("invalid notification type %q", value)
	}
	return n, nil
}
