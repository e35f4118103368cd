package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
)

// PanicRecovery converts handler panics into 500s so one bad request cannot
// take the server down. http.ErrAbortHandler passes through untouched, the
// server uses it to abort in-flight responses.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Printf("[Panic] %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "Internal server error"}`)
		}()

		next.ServeHTTP(w, r)
	})
}
