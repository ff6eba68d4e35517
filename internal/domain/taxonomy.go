package domain

import "strings"

// ContentType is the closed taxonomy of post categories. Unknown or empty
// tags fall back to ContentOther.
type ContentType string

const (
	ContentStorytime    ContentType = "storytime"
	ContentGRWM         ContentType = "grwm"
	ContentThirstTrap   ContentType = "thirst_trap"
	ContentBehindScenes ContentType = "behind_scenes"
	ContentMoneyTalk    ContentType = "money_talk"
	ContentOther        ContentType = "other"
)

// ContentTypes lists every taxonomy entry in display order.
var ContentTypes = []ContentType{
	ContentStorytime,
	ContentGRWM,
	ContentThirstTrap,
	ContentBehindScenes,
	ContentMoneyTalk,
	ContentOther,
}

// ParseContentType normalizes a free-form tag into the taxonomy.
func ParseContentType(s string) ContentType {
	tag := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Taxonomy[tag]; ok {
		return tag
	}
	return ContentOther
}

// IsValid reports whether c is a member of the taxonomy.
func (c ContentType) IsValid() bool {
	_, ok := Taxonomy[c]
	return ok
}

// TaxonomyEntry describes a content type for tagging UIs.
type TaxonomyEntry struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Hotkey      string   `json:"hotkey"`
}

// Taxonomy is the default labelling guide for each content type.
var Taxonomy = map[ContentType]TaxonomyEntry{
	ContentStorytime: {
		Label:       "Storytime",
		Description: "Work stories, client stories, life narratives",
		Keywords:    []string{"story", "happened", "client", "work", "crazy", "told", "said", "omg"},
		Hotkey:      "1",
	},
	ContentGRWM: {
		Label:       "GRWM / Talk to Camera",
		Description: "Get ready with me, direct address, conversational",
		Keywords:    []string{"grwm", "get ready", "chat", "talk", "honest", "real talk", "rant"},
		Hotkey:      "2",
	},
	ContentThirstTrap: {
		Label:       "Thirst Trap",
		Description: "Aesthetic-focused, minimal narrative, visual appeal",
		Keywords:    []string{"outfit", "fit check", "look", "vibe"},
		Hotkey:      "3",
	},
	ContentBehindScenes: {
		Label:       "Behind the Scenes",
		Description: "Day in life, club vlogs, BTS content",
		Keywords:    []string{"vlog", "day in", "bts", "behind", "come with", "pov", "routine"},
		Hotkey:      "4",
	},
	ContentMoneyTalk: {
		Label:       "Money / Income",
		Description: "Earnings breakdowns, income proof, money motivation",
		Keywords:    []string{"made", "earned", "income", "money", "$$", "k this", "profit", "bag"},
		Hotkey:      "5",
	},
	ContentOther: {
		Label:       "Other",
		Description: "Doesn't fit other categories",
		Keywords:    []string{},
		Hotkey:      "6",
	},
}
