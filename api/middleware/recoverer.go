package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR response. If the
// handler already started its response only the log line is written.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}
				err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", recovered), "handler panicked")
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "route_path", r.URL.Path)
				}
				if rec.committed() {
					if logg != nil {
						logg.Error(ctx, "panic.after_write", err)
					}
					return
				}
				responses.WriteError(ctx, logg, rec, err)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
