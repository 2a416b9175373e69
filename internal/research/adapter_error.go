package research

import "fmt"

// adapterHTTPError carries the upstream status so failure logs can say why
// a source was treated as unavailable. 429/403/5xx all mean "unavailable";
// adapters never raise into the engine either way.
type adapterHTTPError struct {
	StatusCode int
	URL        string
}

func (e *adapterHTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

func (e *adapterHTTPError) HTTPStatusCode() int { return e.StatusCode }
