package recommendation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/attribution"
)

var actionEmoji = map[Action]string{
	ActionIncrease: "⬆️",
	ActionDecrease: "⬇️",
	ActionMaintain: "➡️",
	ActionTest:     "🧪",
}

// FormatText renders a report as plain text for email and terminals. The
// output is deterministic for a given report.
func FormatText(r *Report) string {
	heavy := strings.Repeat("=", 60)
	light := strings.Repeat("-", 40)
	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }
	section := func(title string) { add(light, title, light) }

	add(heavy, "FUNNELLENS CONTENT STRATEGY REPORT", heavy, "")

	add(fmt.Sprintf("Period: %d days", r.PeriodDays))
	add(fmt.Sprintf("Total Subscribers: %d", r.TotalSubs))
	if r.TotalRevenue != 0 {
		add("Total Revenue: $" + formatMoney(r.TotalRevenue))
	}
	add("")

	if r.ConfounderWarning != nil && *r.ConfounderWarning != "" {
		add(*r.ConfounderWarning, "")
	}
	if r.TopPerformer != nil {
		add(fmt.Sprintf("🏆 TOP PERFORMER: %s", *r.TopPerformer), "")
	}

	byTier := map[attribution.Tier][]Recommendation{}
	for _, rec := range r.Recommendations {
		byTier[rec.Tier] = append(byTier[rec.Tier], rec)
	}

	if recs := byTier[attribution.TierConfident]; len(recs) > 0 {
		section("CONFIDENT RECOMMENDATIONS")
		for _, rec := range recs {
			add(formatRecommendation(rec))
		}
		add("")
	}
	if recs := byTier[attribution.TierHypothesis]; len(recs) > 0 {
		section("HYPOTHESES (Need More Data)")
		for _, rec := range recs {
			add(formatRecommendation(rec))
		}
		add("")
	}
	if recs := byTier[attribution.TierInsufficientData]; len(recs) > 0 {
		section("INSUFFICIENT DATA")
		for _, rec := range recs {
			add(fmt.Sprintf("  • %s: %s", rec.ContentType, rec.Reasoning))
		}
		add("")
	}

	if p := r.WeeklyPlan; p != nil && len(p.Breakdown) > 0 {
		section("SUGGESTED WEEKLY PLAN")
		add(fmt.Sprintf("Total posts: %d", p.TotalPosts))
		types := make([]domain.ContentType, 0, len(p.Breakdown))
		for ct := range p.Breakdown {
			types = append(types, ct)
		}
		sort.Slice(types, func(i, j int) bool {
			if p.Breakdown[types[i]] != p.Breakdown[types[j]] {
				return p.Breakdown[types[i]] > p.Breakdown[types[j]]
			}
			return types[i] < types[j]
		})
		for _, ct := range types {
			add(fmt.Sprintf("  • %s: %d posts", ct, p.Breakdown[ct]))
		}
		add("\n"+p.Rationale, "")
	}

	if len(r.DataQualityNotes) > 0 {
		section("DATA QUALITY NOTES")
		for _, note := range r.DataQualityNotes {
			add("  " + note)
		}
		add("")
	}

	add(heavy)
	return strings.Join(lines, "\n")
}

func formatRecommendation(rec Recommendation) string {
	emoji, ok := actionEmoji[rec.Action]
	if !ok {
		emoji = "•"
	}
	lift := "lift unknown"
	if rec.LiftPct != 0 {
		lift = fmt.Sprintf("%+.0f%% lift", rec.LiftPct)
	}

	lines := []string{
		fmt.Sprintf("\n%s %s (%s)", emoji, strings.ToUpper(string(rec.ContentType)), lift),
		"   " + rec.Reasoning,
	}
	if s := rec.SuggestedPostsPerWeek; s != 0 {
		if rec.CurrentPostsPerWeek != s {
			lines = append(lines, fmt.Sprintf("   → Change from %.0f to %.0f posts/week", rec.CurrentPostsPerWeek, s))
		} else {
			lines = append(lines, fmt.Sprintf("   → Maintain %.0f posts/week", s))
		}
	}
	for _, c := range rec.Caveats {
		lines = append(lines, "   "+c)
	}
	return strings.Join(lines, "\n")
}

// formatMoney renders 1234567.891 as "1,234,567.89".
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
