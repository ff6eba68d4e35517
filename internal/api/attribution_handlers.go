package api

import (
	"net/http"
	"time"

	"github.com/funnellens/funnellens/internal/pkg/httputil"
)

// GetWindow attributes the last `days` days.
//
//	GET /api/v1/attribution/window/{creatorID}?days=7&content_type=storytime
func (h *Handlers) GetWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", windowDaysDefault, 1, maxDays)
	if !ok {
		return
	}
	end := h.engine.Now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	res, err := h.engine.AttributeWindow(r.Context(), id, start, end, r.URL.Query().Get("content_type"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

// GetPerformance breaks the last `days` days down by content type.
//
//	GET /api/v1/attribution/performance/{creatorID}?days=30
func (h *Handlers) GetPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", performanceDaysDefault, 1, maxDays)
	if !ok {
		return
	}
	res, err := h.engine.ContentTypePerformance(r.Context(), id, days)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

// PostAttributeFans runs the fan attribution pass.
//
//	POST /api/v1/attribution/attribute-fans/{creatorID}?window_hours=48
func (h *Handlers) PostAttributeFans(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}
	hours, ok := queryInt(w, r, "window_hours", 48, minFanWindowHours, maxFanWindowHours)
	if !ok {
		return
	}
	stats, err := h.engine.AttributeFans(r.Context(), id, hours)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// GetBaseline returns the baseline ending now.
//
//	GET /api/v1/attribution/baseline/{creatorID}?lookback_days=14
func (h *Handlers) GetBaseline(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "lookback_days", 14, minLookbackDays, maxLookbackDays)
	if !ok {
		return
	}
	b, err := h.engine.Baseline(r.Context(), id, h.engine.Now(), days)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, b)
}
