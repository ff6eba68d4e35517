package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// QueryInt reads an integer query parameter. A missing parameter yields def;
// a malformed or out-of-range one yields an error naming the bounds.
func QueryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

// ParseUUID validates id and returns it in canonical form.
func ParseUUID(name, id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%s must be a UUID", name)
	}
	return u.String(), nil
}
