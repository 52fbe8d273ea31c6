package testutil

import (
	"net/http"

	"resolute/pkg/requestcontext"
)

// WithReviewer stamps an authenticated reviewer onto the request context,
// simulating what the auth middleware does for a verified token.
func WithReviewer(req *http.Request, reviewerID, role string) *http.Request {
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewerID, role))
}
