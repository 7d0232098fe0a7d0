package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeQueueJoined      NotificationType = "queue_joined"
	NotificationTypeQueueCurrent     NotificationType = "queue_current"
	NotificationTypeQueueCompleted   NotificationType = "queue_completed"
	NotificationTypeQueueCancelled   NotificationType = "queue_cancelled"
	NotificationTypeBusinessApproved NotificationType = "business_approved"
	NotificationTypeBusinessRejected NotificationType = "business_rejected"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeQueueJoined,
	NotificationTypeQueueCurrent,
	NotificationTypeQueueCompleted,
	NotificationTypeQueueCancelled,
	NotificationTypeBusinessApproved,
	NotificationTypeBusinessRejected,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
