// Package api exposes the attribution engine, recommendations and CSV
// imports over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funnellens/funnellens/internal/pkg/httputil"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/ingest"
)

// Query bounds.
const (
	windowDaysDefault      = 7
	performanceDaysDefault = 30
	reportDaysDefault      = 30
	maxDays                = 90
	minReportDays          = 7

	minFanWindowHours = 12
	maxFanWindowHours = 168

	minLookbackDays = 7
	maxLookbackDays = 30
)

// Handlers holds the services behind the routes.
type Handlers struct {
	engine    *attribution.Service
	importer  *ingest.Service
	maxUpload int64
}

// NewHandlers creates the handler set. maxUploadMB caps multipart imports.
func NewHandlers(engine *attribution.Service, importer *ingest.Service, maxUploadMB int) *Handlers {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &Handlers{engine: engine, importer: importer, maxUpload: int64(maxUploadMB) << 20}
}

// creatorID reads and validates the {creatorID} path parameter.
func creatorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := httputil.ParseUUID("creator_id", chi.URLParam(r, "creatorID"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

// queryInt writes a 400 and returns false on a bad parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	v, err := httputil.QueryInt(r, name, def, lo, hi)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return 0, false
	}
	return v, true
}

// respondError maps service errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attribution.ErrInvalidInput),
		errors.Is(err, ingest.ErrInvalidRequest),
		errors.Is(err, ingest.ErrUnknownImportType),
		errors.Is(err, ingest.ErrMissingColumn),
		errors.Is(err, ingest.ErrParse):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, ingest.ErrDuplicateImport):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
