package enums

import "fmt"

// QueueEntryStatus maps to the queue_entry_status enum in Postgres.
type QueueEntryStatus string

const (
	QueueEntryStatusWaiting   QueueEntryStatus = "waiting"
	QueueEntryStatusCurrent   QueueEntryStatus = "current"
	QueueEntryStatusCompleted QueueEntryStatus = "completed"
	QueueEntryStatusCancelled QueueEntryStatus = "cancelled"
)

var validQueueEntryStatuses = []QueueEntryStatus{
	QueueEntryStatusWaiting,
	QueueEntryStatusCurrent,
	QueueEntryStatusCompleted,
	QueueEntryStatusCancelled,
}

// ActiveQueueEntryStatuses are the statuses that count toward queue length
// and block a second join for the same (business, user) pair.
var ActiveQueueEntryStatuses = []QueueEntryStatus{
	QueueEntryStatusWaiting,
	QueueEntryStatusCurrent,
}

// String implements fmt.Stringer.
func (s QueueEntryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical enum.
func (s QueueEntryStatus) IsValid() bool {
	for _, candidate := range validQueueEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the entry still occupies a slot in its queue.
func (s QueueEntryStatus) IsActive() bool {
	return s == QueueEntryStatusWaiting || s == QueueEntryStatusCurrent
}

// IsTerminal reports whether the entry left the queue for good.
// No transition leads out of a terminal status.
func (s QueueEntryStatus) IsTerminal() bool {
	return s == QueueEntryStatusCompleted || s == QueueEntryStatusCancelled
}

// ParseQueueEntryStatus converts raw input into a QueueEntryStatus.
func ParseQueueEntryStatus(value string) (QueueEntryStatus, error) {
	for _, candidate := range validQueueEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queue entry status %q", value)
}

// CancelActor records which side of the counter removed an entry.
type CancelActor string

const (
	CancelActorCustomer CancelActor = "customer"
	CancelActorOwner    CancelActor = "owner"
)

var validCancelActors = []CancelActor{
	CancelActorCustomer,
	CancelActorOwner,
}

// String implements fmt.Stringer.
func (a CancelActor) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical enum.
func (a CancelActor) IsValid() bool {
	for _, candidate := range validCancelActors {
		if candidate == a {
			return true
		}
	}
	return false
}
