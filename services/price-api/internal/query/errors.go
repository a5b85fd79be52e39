package query

import "errors"

// ErrBadRequest is returned when history is called with neither a barcode
// nor a name, per spec.md §7's BadRequest class — refused at the boundary
// rather than resolved against any data source.
var ErrBadRequest = errors.New("query: history requires a barcode or a name")
