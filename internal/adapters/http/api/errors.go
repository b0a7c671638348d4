package api

import (
	"errors"
	"net/http"

	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/scan"
	"github.com/rotisserie/eris"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = eris.New("bad request")
	ErrUnauthorized = eris.New("missing caller identity")
)

// WrapKind tags err with a sentinel kind and the failing operation.
func WrapKind(op string, kind, err error) error {
	return eris.Wrapf(kind, "%s: %v", op, err)
}

// NewKind returns kind tagged with the failing operation.
func NewKind(op string, kind error) error {
	return eris.Wrap(kind, op)
}

// statusFor maps domain errors onto HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, scan.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, scan.ErrScanInProgress):
		return http.StatusConflict, "scan_in_progress"
	case errors.Is(err, scan.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, scan.ErrNotFound), errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, scan.ErrUnknownSource), errors.Is(err, scan.ErrNoSources):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with its mapped status. Internal errors hide their detail.
func fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
