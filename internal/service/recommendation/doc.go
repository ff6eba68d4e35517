// Package recommendation turns content-type performance into tiered posting
// advice. Everything here is a pure function of attribution output: no
// store access, no clock.
//
// A recommendation is only "confident" when its own confidence score
// clears the threshold and no confounder overlaps the period. Everything
// else is a hypothesis to test or, below the minimum post count, a prompt
// to gather data.
package recommendation
