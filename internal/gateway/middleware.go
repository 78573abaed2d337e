package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/glintcart/glintbot/internal/logging"
)

type middleware func(http.Handler) http.Handler

// withMiddleware layers the standard chain around the webhook mux:
// access logging outermost, then CORS for the dashboard, then request
// id tagging. Webhook providers retry aggressively, so every response
// carries an id that can be matched against the access log.
func withMiddleware(handler http.Handler, log *logging.Logger, corsOrigins []string) http.Handler {
	for _, m := range []middleware{
		requestID,
		cors(corsOrigins),
		accessLog(log),
	} {
		handler = m(handler)
	}
	return handler
}

// statusWriter records what the inner handler wrote so the access log
// can report status and response size.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func accessLog(log *logging.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("request_id", sw.Header().Get("X-Request-ID")).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// cors answers preflights and stamps allow headers for the dashboard
// origin. Webhook providers never send an Origin header, so everything
// except the event feed passes through untouched.
func cors(allowed []string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && isOriginAllowed(origin, allowed) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Cross-origin is denied unless origins are configured.
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
