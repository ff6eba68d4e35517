package ingest

import (
	"fmt"
	"strings"

	"github.com/funnellens/funnellens/internal/domain"
)

type field struct {
	name     string
	variants []string
}

var requiredColumns = map[domain.ImportType][]field{
	domain.ImportSocialPosts: {
		{"platform", []string{"platform"}},
		{"post_id", []string{"post_id", "video_id", "id"}},
		{"posted_at", []string{"posted_at", "post_date", "date", "created_at"}},
		{"views", []string{"views", "view_count", "plays"}},
	},
	domain.ImportFans: {
		{"acquired_at", []string{"acquired_at", "subscribed_at", "date", "created_at"}},
	},
	domain.ImportRevenue: {
		{"fan_id", []string{"fan_id", "user_id", "subscriber_id"}},
		{"amount", []string{"amount", "value", "price"}},
		{"event_at", []string{"event_at", "date", "created_at"}},
	},
}

var optionalColumns = map[domain.ImportType][]field{
	domain.ImportSocialPosts: {
		{"likes", []string{"likes", "like_count", "hearts"}},
		{"comments", []string{"comments", "comment_count"}},
		{"shares", []string{"shares", "share_count"}},
		{"saves", []string{"saves", "save_count", "bookmarks"}},
		{"caption", []string{"caption", "description", "text"}},
		{"url", []string{"url", "link", "video_url"}},
		{"duration", []string{"duration", "video_duration", "length"}},
		{"content_type", []string{"content_type", "category", "tag"}},
	},
	domain.ImportFans: {
		{"external_id", []string{"external_id", "user_id", "fan_id", "subscriber_id"}},
		{"churned_at", []string{"churned_at", "unsubscribed_at", "cancelled_at"}},
	},
	domain.ImportRevenue: {
		{"event_type", []string{"event_type", "type", "category"}},
		{"currency", []string{"currency"}},
	},
}

// columnMap maps standard field names to column indexes.
type columnMap map[string]int

func mapColumns(header []string, t domain.ImportType) (columnMap, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	m := columnMap{}
	for _, f := range requiredColumns[t] {
		i, ok := lookup(index, f.variants)
		if !ok {
			return nil, fmt.Errorf("%w: %s (tried: %s)", ErrMissingColumn, f.name, strings.Join(f.variants, ", "))
		}
		m[f.name] = i
	}
	for _, f := range optionalColumns[t] {
		if i, ok := lookup(index, f.variants); ok {
			m[f.name] = i
		}
	}
	return m, nil
}

// normalizeHeader lowercases a header and folds runs of spaces, hyphens and
// underscores into one underscore, so "Video ID" and "video-id" both match
// "video_id".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	fields := strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

func lookup(index map[string]int, variants []string) (int, bool) {
	for _, v := range variants {
		if i, ok := index[v]; ok {
			return i, true
		}
	}
	return 0, false
}

// get returns the trimmed cell for a field, or "" when the column is absent
// or the row is short.
func (m columnMap) get(row []string, name string) string {
	i, ok := m[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (m columnMap) has(name string) bool {
	_, ok := m[name]
	return ok
}
