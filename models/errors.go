package models

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Per-request outcome taxonomy. Every error here is user-visible and carries
// a machine-readable kind; none of them is fatal to the process.
var (
	// ErrReportExists: a report for (owner, year, month) is already persisted.
	// Generate returns the existing report alongside this error so handlers
	// can include it in the 409 body.
	ErrReportExists = errors.New("report already exists for this period")

	// ErrNoTrips: the period has no trips, so there is nothing to snapshot.
	ErrNoTrips = errors.New("no trips found for this period")

	// ErrRenderFailed: document rendering failed. The report snapshot stays
	// valid and un-rendered; rendering can be retried.
	ErrRenderFailed = errors.New("report rendering failed")

	// ErrAlreadyRendered: render retry requested for a report that already
	// has its files attached.
	ErrAlreadyRendered = errors.New("report has already been rendered")

	// ErrMapsUnavailable: the Distance Matrix call failed upstream.
	ErrMapsUnavailable = errors.New("distance service unavailable")
)

// ErrorKind maps an error to its wire-level code.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrReportExists):
		return "already_exists"
	case errors.Is(err, ErrNoTrips):
		return "no_data"
	case errors.Is(err, ErrRenderFailed):
		return "render_error"
	case errors.Is(err, ErrAlreadyRendered):
		return "already_rendered"
	case errors.Is(err, ErrMapsUnavailable):
		return "maps_error"
	default:
		var fe FieldErrors
		if errors.As(err, &fe) {
			return "validation_error"
		}
		return "internal_error"
	}
}

// FieldErrors carries per-field validation messages, surfaced verbatim.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// IsDuplicateKeyError reports whether err is a MySQL duplicate-entry (1062)
// violation. Under racing generate calls the existence check can pass on both
// sides; the unique key on (user_id, year, month) decides the winner and the
// loser's insert surfaces here.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
