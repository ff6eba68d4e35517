package api

import (
	"net/http"

	"github.com/funnellens/funnellens/internal/pkg/httputil"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/recommendation"
)

// report reads the creator and days parameters and builds the report.
// It writes the error response itself and returns nil on failure.
func (h *Handlers) report(w http.ResponseWriter, r *http.Request) (*recommendation.Report, *attribution.Performance) {
	id, ok := creatorID(w, r)
	if !ok {
		return nil, nil
	}
	days, ok := queryInt(w, r, "days", reportDaysDefault, minReportDays, maxDays)
	if !ok {
		return nil, nil
	}
	perf, err := h.engine.ContentTypePerformance(r.Context(), id, days)
	if err != nil {
		respondError(w, err)
		return nil, nil
	}
	return recommendation.Generate(id, perf, nil), perf
}

// GetReport returns the full recommendation report.
//
//	GET /api/v1/recommendations/report/{creatorID}?days=30
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	if rep, _ := h.report(w, r); rep != nil {
		httputil.OK(w, rep)
	}
}

// GetReportText returns the plain-text rendering.
//
//	GET /api/v1/recommendations/report/{creatorID}/text?days=30
func (h *Handlers) GetReportText(w http.ResponseWriter, r *http.Request) {
	if rep, _ := h.report(w, r); rep != nil {
		httputil.OK(w, map[string]string{"report": recommendation.FormatText(rep)})
	}
}

// GetQuick returns the dashboard summary.
//
//	GET /api/v1/recommendations/quick/{creatorID}
func (h *Handlers) GetQuick(w http.ResponseWriter, r *http.Request) {
	if rep, _ := h.report(w, r); rep != nil {
		httputil.OK(w, recommendation.Quick(rep))
	}
}

// GetRankings returns content types ordered by lift.
//
//	GET /api/v1/recommendations/rankings/{creatorID}
func (h *Handlers) GetRankings(w http.ResponseWriter, r *http.Request) {
	if rep, perf := h.report(w, r); rep != nil {
		httputil.OK(w, recommendation.Rank(perf))
	}
}
