package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
)

const dateLayout = "2006-01-02"

// UserHeader carries the acting user when the request body does not.
const UserHeader = "X-User"

// Base provides shared functionality for all handlers.
type Base struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

// NewBase creates a new base handler over the engine.
func NewBase(engine *reconcile.Engine, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{engine: engine, logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteEngineError maps an engine error to its HTTP status and writes it.
func (b *Base) WriteEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	b.WriteError(w, status, dto.FromError(err))
}

// StatusFor returns the HTTP status for an engine error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrStaleSelection),
		errors.Is(err, model.ErrAlreadyReconciled),
		errors.Is(err, model.ErrAlreadyReversed):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnbalancedRejected),
		errors.Is(err, model.ErrMissingAccountMapping):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into v. An empty body leaves v unchanged.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseBoolParam parses a boolean query parameter with a default value.
func ParseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// ParseIDParam parses a numeric URL parameter.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Invalidf("invalid %s", name)
	}
	return id, nil
}

// ParseDate parses a calendar day. An empty string is the zero time.
func ParseDate(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, model.Invalidf("invalid date %q, expected YYYY-MM-DD", val)
	}
	return t, nil
}

// ParseRange builds a date range from two calendar days.
func ParseRange(from, to string) (model.DateRange, error) {
	var (
		rng model.DateRange
		err error
	)
	if rng.From, err = ParseDate(from); err != nil {
		return rng, err
	}
	if rng.To, err = ParseDate(to); err != nil {
		return rng, err
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, model.Invalidf("date range ends before it starts")
	}
	return rng, nil
}

// ParseRangeQuery reads the from and to query parameters.
func ParseRangeQuery(r *http.Request) (model.DateRange, error) {
	q := r.URL.Query()
	return ParseRange(q.Get("from"), q.Get("to"))
}

// ActingUser returns the user named in the body, or the X-User header.
func ActingUser(r *http.Request, fromBody string) string {
	if u := strings.TrimSpace(fromBody); u != "" {
		return u
	}
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
