package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// uuidParam parses a required uuid query parameter
func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	return id, err == nil
}

// optionalUUIDParam parses a uuid query parameter that may be absent
func optionalUUIDParam(r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}

	return &id, true
}

// intParam parses an integer query parameter, zero if absent
func intParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, false
	}

	return value, true
}
