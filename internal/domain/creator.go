package domain

import "time"

// CreatorStatus enumerates the account states of a creator.
type CreatorStatus string

const (
	CreatorActive   CreatorStatus = "active"
	CreatorPaused   CreatorStatus = "paused"
	CreatorArchived CreatorStatus = "archived"
)

// Creator is a piece of talent whose growth is being attributed.
type Creator struct {
	ID                string        `json:"id" db:"id"`
	AgencyID          string        `json:"agency_id" db:"agency_id"`
	Name              string        `json:"name" db:"name"`
	TikTokHandle      string        `json:"tiktok_handle,omitempty" db:"tiktok_handle"`
	InstagramHandle   string        `json:"instagram_handle,omitempty" db:"instagram_handle"`
	NotificationEmail string        `json:"notification_email,omitempty" db:"notification_email"`
	Status            CreatorStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}
