// Package requestid assigns each request an identifier for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"resolute/pkg/requestcontext"
)

// Header carries the request id on responses and honors ids supplied by an
// upstream proxy.
const Header = "X-Request-ID"

// Middleware places a request id on the context and echoes it back in the
// response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
