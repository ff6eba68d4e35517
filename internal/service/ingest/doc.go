// Package ingest imports creator CSV exports: social post metrics, fan
// acquisitions and revenue events.
//
// Every social_posts import appends one snapshot per row at the import's
// snapshot time. Snapshots are what the attribution engine reads; the
// cumulative counters on the post are only a convenience view of the
// latest import.
//
// Files are deduplicated by SHA-256 of their bytes. A missing required
// column fails the whole import; a bad row is skipped and reported.
package ingest
