package domain

import "time"

// ConfounderType enumerates external events that can skew attribution.
type ConfounderType string

const (
	ConfounderPriceChange     ConfounderType = "price_change"
	ConfounderPromotion       ConfounderType = "promotion"
	ConfounderCollab          ConfounderType = "collab"
	ConfounderExternalTraffic ConfounderType = "external_traffic"
	ConfounderMassDM          ConfounderType = "mass_dm"
	ConfounderOFPromo         ConfounderType = "of_promo"
	ConfounderOther           ConfounderType = "other"
)

// ImpactLevel is the qualitative estimate of a confounder's effect.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// ConfounderEvent is an interval during which growth may have an external
// cause. A nil EventEnd means the event is open-ended.
type ConfounderEvent struct {
	ID              string         `json:"id" db:"id"`
	CreatorID       string         `json:"creator_id" db:"creator_id"`
	EventType       ConfounderType `json:"event_type" db:"event_type"`
	EventStart      time.Time      `json:"event_start" db:"event_start"`
	EventEnd        *time.Time     `json:"event_end" db:"event_end"`
	Description     string         `json:"description" db:"description"`
	EstimatedImpact ImpactLevel    `json:"estimated_impact" db:"estimated_impact"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// Overlaps reports whether the event intersects [start, end].
func (e ConfounderEvent) Overlaps(start, end time.Time) bool {
	if e.EventStart.After(end) {
		return false
	}
	return e.EventEnd == nil || !e.EventEnd.Before(start)
}
