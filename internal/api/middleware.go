// Package api implements the preview HTTP API using chi.
package api

import "net/http"

// NoCache marks every response as uncacheable so that browsers pick up a
// regenerated context immediately.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
