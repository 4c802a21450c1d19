// Package httpapi is the thin HTTP front-end over internal/pipeline
// (spec §7): one handler per OpKind, translating query-string fields
// into a pipeline.Request and writing the eventual response back with
// pkg/binary. It generalizes the teacher's internal/handler +
// internal/middleware, which did the same translation for VTFS's
// inode/dirent calls.
package httpapi

import (
	"net/http"

	"github.com/omnifs/omnifs/pkg/logging"
)

// RequestIDMiddleware stamps every request with a request id, reusing
// an incoming X-Request-ID header when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := logging.GetRequestIDFromCtx(ctx)
		if requestID == "" {
			requestID = r.Header.Get("X-Request-ID")
		}
		if requestID == "" {
			ctx = logging.MakeContextWithNewRequestID(ctx)
		} else {
			ctx = logging.MakeContextWithRequestID(ctx, requestID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
