package recommendation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/confidence"
)

const (
	planWithheldConfounders = "Weekly plan unavailable due to confounders. Maintain current mix while gathering clean data."
	planWithheldNoConfident = "Insufficient confident data for weekly plan. Continue testing all content types."
	planBalanced            = "Balanced approach recommended based on current data."

	minContentTypesForComparison = 3
	shortPeriodDays              = 14
	maxWarningDescriptions       = 3
)

// weeklyPlan expects recs already sorted.
func weeklyPlan(recs []Recommendation, hasConfounders bool) *WeeklyPlan {
	withheld := func(rationale string) *WeeklyPlan {
		return &WeeklyPlan{
			TotalPosts: DefaultPostsPerWeek,
			Breakdown:  map[domain.ContentType]int{},
			Rationale:  rationale,
		}
	}
	if hasConfounders {
		return withheld(planWithheldConfounders)
	}
	anyConfident := false
	for _, r := range recs {
		if r.Tier == attribution.TierConfident {
			anyConfident = true
			break
		}
	}
	if !anyConfident {
		return withheld(planWithheldNoConfident)
	}

	breakdown := map[domain.ContentType]int{}
	total := 0
	for _, r := range recs {
		if r.SuggestedPostsPerWeek == 0 {
			continue
		}
		n := int(r.SuggestedPostsPerWeek)
		breakdown[r.ContentType] = n
		total += n
	}

	if total > MaxPostsPerWeek {
		scale := float64(MaxPostsPerWeek) / float64(total)
		total = 0
		for ct, n := range breakdown {
			scaled := max(1, int(float64(n)*scale))
			breakdown[ct] = scaled
			total += scaled
		}
	}

	var focus []string
	for _, r := range recs {
		if r.Action == ActionIncrease && len(focus) < 2 {
			focus = append(focus, string(r.ContentType))
		}
	}
	rationale := planBalanced
	if len(focus) > 0 {
		rationale = fmt.Sprintf("Focus on %s based on lift data.", strings.Join(focus, ", "))
	}

	if total == 0 {
		total = DefaultPostsPerWeek
	}
	return &WeeklyPlan{TotalPosts: total, Breakdown: breakdown, Rationale: rationale}
}

func confounderWarning(cs []attribution.ConfounderSummary) string {
	if len(cs) == 0 {
		return ""
	}
	seen := map[string]bool{}
	var types, descriptions []string
	for _, c := range cs {
		t := string(c.Type)
		if t == "" {
			t = "unknown"
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
		if c.Description != "" {
			descriptions = append(descriptions, c.Description)
		}
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ CONFOUNDER ALERT: %s detected during this period", strings.Join(types, ", "))
	if len(descriptions) > 0 {
		if len(descriptions) > maxWarningDescriptions {
			descriptions = descriptions[:maxWarningDescriptions]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(descriptions, "; "))
	}
	b.WriteString(". Recommendations are marked as hypotheses until a clean measurement window is available.")
	return b.String()
}

func dataQualityNotes(perf *attribution.Performance, recs []Recommendation) []string {
	notes := []string{}
	if perf.TotalSubs < confidence.MinSubsForRecommendation {
		notes = append(notes, fmt.Sprintf("⚠️ Only %d subscribers in period - minimum %d recommended for attribution",
			perf.TotalSubs, confidence.MinSubsForRecommendation))
	}
	if perf.TotalSubs < confidence.MinSubsForConfident {
		notes = append(notes, fmt.Sprintf("📊 Sample size below %d - all recommendations are hypotheses", confidence.MinSubsForConfident))
	}
	if perf.PeriodDays < shortPeriodDays {
		notes = append(notes, fmt.Sprintf("📅 Short analysis period (%d days) - consider 30+ days for stability", perf.PeriodDays))
	}
	insufficient := 0
	for _, r := range recs {
		if r.Tier == attribution.TierInsufficientData {
			insufficient++
		}
	}
	if insufficient > 0 {
		notes = append(notes, fmt.Sprintf("📉 %d content type(s) have insufficient data", insufficient))
	}
	if len(perf.ContentTypes) < minContentTypesForComparison {
		notes = append(notes, "💡 Consider testing more content types for comparison")
	}
	return notes
}
