package security

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"ledger/internal/log"
)

// Recovery turns a handler panic into a 500 written by onPanic.
func Recovery(onPanic func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slog.ErrorContext(r.Context(), "Panic recovered",
						log.FieldComponent, log.ComponentHTTP,
						log.FieldError, rec,
						log.FieldMethod, r.Method,
						log.FieldPath, r.URL.Path,
						"stack", string(debug.Stack()))

					if onPanic != nil {
						onPanic(w, r)
						return
					}
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
