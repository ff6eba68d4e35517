// Package confidence scores how much an attribution claim can be trusted.
//
// A score is driven by the number of observed events (subscribers), not the
// number of posts, by a two-sided Poisson comparison against the
// baseline-expected count, and by data-quality penalties for short
// baselines, short windows and overlapping confounders. Scores are bounded
// to [0.1, 0.95]: the scorer never claims certainty and never rules a
// signal out entirely.
package confidence
