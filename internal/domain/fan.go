package domain

import "time"

// AttributionMethod records how a fan was attributed to content.
type AttributionMethod string

const (
	AttributionReferralLink   AttributionMethod = "referral_link"
	AttributionWeightedWindow AttributionMethod = "weighted_window"
	AttributionCampaign       AttributionMethod = "campaign"
)

// RevenueEventType enumerates monetization events.
type RevenueEventType string

const (
	RevenueSubscription RevenueEventType = "subscription"
	RevenueRenewal      RevenueEventType = "renewal"
	RevenueTip          RevenueEventType = "tip"
	RevenuePPV          RevenueEventType = "ppv"
	RevenueMessage      RevenueEventType = "message"
)

// Fan is a subscriber acquired by a creator. The attribution fields are
// empty until the attribution pass assigns them exactly once.
type Fan struct {
	ID             string    `json:"id" db:"id"`
	CreatorID      string    `json:"creator_id" db:"creator_id"`
	ExternalIDHash string    `json:"-" db:"external_id_hash"`
	AcquiredAt     time.Time `json:"acquired_at" db:"acquired_at"`
	ReferralLinkID *string   `json:"referral_link_id,omitempty" db:"referral_link_id"`

	AttributedContentType *ContentType            `json:"attributed_content_type" db:"attributed_content_type"`
	AttributionMethod     *AttributionMethod      `json:"attribution_method" db:"attribution_method"`
	AttributionConfidence *float64                `json:"attribution_confidence" db:"attribution_confidence"`
	AttributionWeights    map[ContentType]float64 `json:"attribution_weights,omitempty" db:"attribution_weights"`

	ChurnedAt  *time.Time `json:"churned_at,omitempty" db:"churned_at"`
	TotalSpend float64    `json:"total_spend" db:"total_spend"`
}

// IsAttributed reports whether the fan already carries a primary content type.
func (f Fan) IsAttributed() bool {
	return f.AttributedContentType != nil
}

// RevenueEvent is a single monetization event from a fan.
type RevenueEvent struct {
	ID        string           `json:"id" db:"id"`
	FanID     string           `json:"fan_id" db:"fan_id"`
	EventType RevenueEventType `json:"event_type" db:"event_type"`
	Amount    float64          `json:"amount" db:"amount"`
	Currency  string           `json:"currency" db:"currency"`
	EventAt   time.Time        `json:"event_at" db:"event_at"`
}
