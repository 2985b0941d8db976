package common

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ParseID parses a positive integer identifier.
func ParseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// URLParamID reads a positive integer chi URL parameter. It writes a 400 response and
// returns false when the parameter is missing or malformed.
func URLParamID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, ok := ParseID(chi.URLParam(r, name))
	if !ok {
		JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}
