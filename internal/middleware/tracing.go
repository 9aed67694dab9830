package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	apperrors "github.com/R3E-Network/foodapp/internal/errors"
	"github.com/R3E-Network/foodapp/internal/httputil"
	"github.com/R3E-Network/foodapp/internal/logging"
)

// TraceHeader carries the request trace ID in both directions.
const TraceHeader = "X-Trace-ID"

// TraceMiddleware reuses the caller's trace ID or generates one, stores it in
// the request context and echoes it in the response.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}

// RecoverMiddleware turns a handler panic into a logged 500.
func RecoverMiddleware(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.WithContext(r.Context()).
						WithField("panic", fmt.Sprint(rec)).
						WithField("stack", string(debug.Stack())).
						Error("handler panicked")
					serr := apperrors.Internal("internal server error", fmt.Errorf("panic: %v", rec))
					httputil.WriteErrorResponse(w, r, serr.HTTPStatus, string(serr.Code), serr.Message, nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
