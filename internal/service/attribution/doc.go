// Package attribution implements baseline-relative incrementality
// attribution of subscriber and revenue growth to content types.
//
// Views are never read from a post's cumulative counters. Activity in a
// period is always the difference between the latest snapshots at or
// before the period's two ends, so every call is a pure function of the
// snapshot history plus the fans, revenue and confounders the store returns.
//
// The baseline for a window always ends where the window starts. A baseline
// computed against "now" would count the window's own growth twice.
//
// The service depends only on the Repository interface in repository.go.
// AttributeFans is the only operation that writes, and it hands all of its
// updates to the repository in a single call so they commit or roll back
// together.
package attribution
