package attribution

import "errors"

// Sentinel errors for the attribution service layer.
var (
	ErrInvalidInput = errors.New("invalid attribution input")
)
