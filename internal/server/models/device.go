package models

import "time"

// Device is a client installation. (UserID, Name, Platform) is unique.
type Device struct {
	ID         int64
	UserID     int64
	Name       string
	Platform   string
	LastSeenAt time.Time
	CreatedAt  time.Time
}
