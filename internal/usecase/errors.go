package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"TwsePulse/internal/service/fetch"
	"TwsePulse/internal/service/twse"
	xhttp "TwsePulse/pkg/http"
)

var symbolPattern = regexp.MustCompile(`^[0-9]{4,6}[A-Z]?$`)

// NormalizeSymbol canonicalizes a raw symbol: trim, uppercase, strip
// separator punctuation. Rejects anything outside the exchange's numeric
// code convention before any cache or network touch.
func NormalizeSymbol(raw string) (string, *xhttp.AppError) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(".", "", "-", "", "_", "", " ", "").Replace(s)
	if !symbolPattern.MatchString(s) {
		return "", xhttp.NewAppError("ERR_INVALID_SYMBOL", "symbol",
			fmt.Sprintf("invalid symbol %q", raw), http.StatusBadRequest)
	}
	return s, nil
}

func errInsufficientData(symbol string, bars int) *xhttp.AppError {
	return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "",
		fmt.Sprintf("not enough history for %s (%d bars)", symbol, bars),
		http.StatusUnprocessableEntity)
}

// mapUpstreamError converts fetch/parse failures to typed application
// errors so raw network and decode errors never leak to the API boundary.
func mapUpstreamError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, twse.ErrDataInvalid):
		return xhttp.NewAppError("ERR_UPSTREAM_DATA_INVALID", "",
			"upstream answered with unusable data",
			http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, fetch.ErrRejected):
		return xhttp.NewAppError("ERR_UPSTREAM_REJECTED", "",
			"upstream rejected the request",
			http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, fetch.ErrUnavailable):
		return xhttp.UnavailableError("upstream unavailable").WithError(err)
	default:
		return xhttp.InternalError("unexpected failure").WithError(err)
	}
}
