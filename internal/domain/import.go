package domain

import "time"

// ImportType enumerates the CSV feeds the ingest pipeline accepts.
type ImportType string

const (
	ImportSocialPosts ImportType = "social_posts"
	ImportFans        ImportType = "fans"
	ImportRevenue     ImportType = "revenue"
)

// ImportRowError describes a CSV row that was skipped.
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Import records one CSV file ingestion. Each social_posts import is a
// discrete snapshot event.
type Import struct {
	ID           string           `json:"id" db:"id"`
	CreatorID    string           `json:"creator_id" db:"creator_id"`
	ImportType   ImportType       `json:"import_type" db:"import_type"`
	FileName     string           `json:"file_name" db:"file_name"`
	FileHash     string           `json:"-" db:"file_hash"`
	RowsTotal    int              `json:"rows_total" db:"rows_total"`
	RowsImported int              `json:"rows_imported" db:"rows_imported"`
	RowsSkipped  int              `json:"rows_skipped" db:"rows_skipped"`
	SnapshotAt   time.Time        `json:"snapshot_at" db:"snapshot_at"`
	ImportedAt   time.Time        `json:"imported_at" db:"imported_at"`
	Errors       []ImportRowError `json:"errors" db:"errors"`
}
