package http

import (
	"context"
	"net/http"

	"expensetracker/internal/log"
	"expensetracker/internal/middleware/trace"
)

// writeResponse sends b and logs when the body could not be written.
func writeResponse(r *http.Request, w http.ResponseWriter, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}

func logFailure(r *http.Request, msg string, err error, op string, fields log.LogFields) {
	ctx := r.Context()
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, msg, err, op, fields)
}

// withRoute labels the request with the pattern that matched it.
func withRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), r.Pattern)
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(r, w, NewJSONResponse().Body(map[string]string{"status": "ok"}))
}

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func handleReady(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
				writeResponse(r, w, ErrorResponse(http.StatusServiceUnavailable, "not ready"))
				return
			}
		}
		writeResponse(r, w, NewJSONResponse().Body(map[string]string{"status": "ready"}))
	}
}

func onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
	writeResponse(r, w, TooManyRequestsError())
}
