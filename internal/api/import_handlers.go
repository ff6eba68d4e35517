package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/httputil"
	"github.com/funnellens/funnellens/internal/service/ingest"
)

// PostImport accepts a CSV upload.
//
//	POST /api/v1/imports/{type}   multipart: file, creator_id, snapshot_at (RFC 3339, optional)
func (h *Handlers) PostImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.BadRequest(w, "invalid multipart upload: "+err.Error())
		return
	}

	id, err := httputil.ParseUUID("creator_id", r.FormValue("creator_id"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var snapshotAt time.Time
	if v := r.FormValue("snapshot_at"); v != "" {
		snapshotAt, err = time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.BadRequest(w, "snapshot_at must be RFC 3339")
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		httputil.BadRequest(w, "could not read file")
		return
	}

	imp, err := h.importer.Import(r.Context(), ingest.Request{
		CreatorID:  id,
		Type:       domain.ImportType(chi.URLParam(r, "type")),
		FileName:   header.Filename,
		Content:    content,
		SnapshotAt: snapshotAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, imp)
}
