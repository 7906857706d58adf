package api

import (
	"errors"
	"net/http"

	"github.com/okian/hoopstat/internal/adapters/export"
	"github.com/okian/hoopstat/internal/adapters/narrative"
	service "github.com/okian/hoopstat/internal/app"
	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/stats"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoResult   = errors.New("pipeline returned no result, see logs")
)

// statusFor maps pipeline errors to HTTP status codes. Caller contract
// violations are 400.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrNoPlayers),
		errors.Is(err, stats.ErrUnsupportedMethod),
		errors.Is(err, features.ErrUnknownColumn),
		errors.Is(err, features.ErrInvalidComponents),
		errors.Is(err, features.ErrUnsupportedScaling),
		errors.Is(err, features.ErrInsufficientRows),
		errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrPlayerUnavailable):
		return http.StatusNotFound, "player_unavailable"
	case errors.Is(err, service.ErrExportDisabled), errors.Is(err, narrative.ErrNoBackend):
		return http.StatusNotImplemented, "not_configured"
	case errors.Is(err, ErrNoResult):
		return http.StatusServiceUnavailable, "no_result"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}
