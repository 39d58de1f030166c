package models

import "time"

// AvatarRecord links a user to the cached avatar blob. There is at most one
// record per user.
type AvatarRecord struct {
	UserID    int64
	Digest    string
	Location  string
	CreatedAt time.Time
}
