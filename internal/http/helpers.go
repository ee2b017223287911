package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"previsto/internal/core"
)

// envelope is the wire shape of every API response: exactly one of data or
// error is set.
type envelope struct {
	Data  any     `json:"data"`
	Error *string `json:"error"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &msg})
}

// writeServiceError maps engine errors to HTTP statuses. Unknown errors are
// reported as a generic 500 so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, core.ErrNotFound.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// requestUser resolves the owner from the X-User-ID header set by the auth
// gateway in front of this service.
func requestUser(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		return "", errors.New("missing X-User-ID header")
	}
	return userID, nil
}

// parseLimit reads the limit query parameter, falling back to def when
// absent. Zero and negative values are rejected.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive integer", raw)
	}
	return limit, nil
}

// parseMonth accepts YYYY-MM or YYYY-MM-DD and normalizes to the first day
// of the month.
func parseMonth(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return core.MonthStart(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM or YYYY-MM-DD", raw)
}

// parseMonthRange reads the start and end query parameters of the trends
// endpoint.
func parseMonthRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, errors.New("start and end query parameters are required")
	}

	start, err = parseMonth(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseMonth(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end month must not precede start month")
	}
	return start, end, nil
}
