package testutil

import (
	"net/http"
	"time"

	"linkage/pkg/requestcontext"
)

// WithTime pins the request-scoped clock so services observe a fixed "now".
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
