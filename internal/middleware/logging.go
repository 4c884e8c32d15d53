package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/keycal/keycal/internal/auth"
)

// Logger is a request logging middleware using slog. Server errors log at
// error level, client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Handlers further down replace the request, so the principal is
		// captured through a shared holder.
		holder := &principalHolder{}
		r = r.WithContext(withHolder(r.Context(), holder))

		defer func() {
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", ww.BytesWritten(),
				"request_id", requestID(r),
			}
			if holder.p != nil {
				attrs = append(attrs, "sub", holder.p.Subject)
			}

			level := slog.LevelInfo
			switch {
			case ww.Status() >= 500:
				level = slog.LevelError
			case ww.Status() >= 400:
				level = slog.LevelWarn
			}
			slog.Log(r.Context(), level, "request", attrs...)
		}()

		next.ServeHTTP(ww, r)
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

type principalHolder struct {
	p *auth.Principal
}
