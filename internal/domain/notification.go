package domain

import (
	"strings"
	"time"
)

// Notification is persisted as a side effect of a ledger mutation, one row
// per recipient. Delivery to a live client happens downstream.
type Notification struct {
	ID         string
	UserID     string
	ActivityID string
	Message    string
	Read       bool
	CreatedAt  time.Time
}

func NewNotification(id, userID, activityID, message string, now time.Time) (Notification, error) {
	id = strings.TrimSpace(id)
	userID = strings.TrimSpace(userID)
	activityID = strings.TrimSpace(activityID)
	message = strings.TrimSpace(message)

	if id == "" || userID == "" || activityID == "" {
		return Notification{}, ErrInvalidID
	}
	if message == "" {
		return Notification{}, ErrInvalidMessage
	}

	return Notification{
		ID:         id,
		UserID:     userID,
		ActivityID: activityID,
		Message:    message,
		CreatedAt:  now.UTC(),
	}, nil
}
