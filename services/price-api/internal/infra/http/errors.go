package httpapi

import (
	"errors"
	"net/http"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
	"pricewatch/services/price-api/internal/query"
)

// statusFor maps the error taxonomy spec.md §7 describes onto HTTP status
// codes: bad input is refused at the boundary, catalog failures and
// upstream outages are server-side, everything else is an unexpected 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, archiveclient.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}
