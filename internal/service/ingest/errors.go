package ingest

import "errors"

// Sentinel errors for the ingest service layer.
var (
	ErrDuplicateImport   = errors.New("file has already been imported")
	ErrMissingColumn     = errors.New("missing required column")
	ErrParse             = errors.New("failed to parse csv")
	ErrUnknownImportType = errors.New("unknown import type")
	ErrInvalidRequest    = errors.New("invalid import request")
)
