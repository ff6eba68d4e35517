package domain

import (
	"strings"
	"time"
)

// Platform enumerates the social networks posts are imported from.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// ParsePlatform maps a raw export value onto a platform. Anything that does
// not mention tiktok is treated as instagram, matching the export formats
// the importer accepts.
func ParsePlatform(s string) Platform {
	if strings.Contains(strings.ToLower(s), "tiktok") {
		return PlatformTikTok
	}
	return PlatformInstagram
}

// Post is a social media post. Its cumulative counters track the latest
// import and are not authoritative for time-sliced analysis; use Snapshot
// deltas for that.
type Post struct {
	ID             string       `json:"id" db:"id"`
	CreatorID      string       `json:"creator_id" db:"creator_id"`
	Platform       Platform     `json:"platform" db:"platform"`
	PlatformPostID string       `json:"platform_post_id" db:"platform_post_id"`
	PostedAt       time.Time    `json:"posted_at" db:"posted_at"`
	ContentType    *ContentType `json:"content_type" db:"content_type"`

	ViewsCumulative    int64 `json:"views_cumulative" db:"views_cumulative"`
	LikesCumulative    int64 `json:"likes_cumulative" db:"likes_cumulative"`
	CommentsCumulative int64 `json:"comments_cumulative" db:"comments_cumulative"`
	SharesCumulative   int64 `json:"shares_cumulative" db:"shares_cumulative"`
	SavesCumulative    int64 `json:"saves_cumulative" db:"saves_cumulative"`

	Caption         string     `json:"caption,omitempty" db:"caption"`
	URL             string     `json:"url,omitempty" db:"url"`
	DurationSeconds int        `json:"duration_seconds,omitempty" db:"duration_seconds"`
	LastSnapshotAt  *time.Time `json:"last_snapshot_at" db:"last_snapshot_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Tag returns the post's content type normalized into the taxonomy.
// Untagged posts count as ContentOther.
func (p Post) Tag() ContentType {
	if p.ContentType == nil {
		return ContentOther
	}
	return ParseContentType(string(*p.ContentType))
}

// Snapshot is an immutable point-in-time record of a post's cumulative
// counters. A new one is appended on every import.
type Snapshot struct {
	ID        string    `json:"id" db:"id"`
	PostID    string    `json:"post_id" db:"post_id"`
	CreatorID string    `json:"creator_id" db:"creator_id"`
	TakenAt   time.Time `json:"taken_at" db:"snapshot_at"`
	Views     int64     `json:"views" db:"views"`
	Likes     int64     `json:"likes" db:"likes"`
	Comments  int64     `json:"comments" db:"comments"`
	Shares    int64     `json:"shares" db:"shares"`
	Saves     int64     `json:"saves" db:"saves"`
	ImportID  *string   `json:"import_id,omitempty" db:"import_id"`
}
