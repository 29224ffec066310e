package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UsernameContextKey = contextKey("username")

// UsernameHeader carries the plain identity string of the caller. It is
// not authenticated.
const UsernameHeader = "X-Username"

// Identity stores the X-Username header, if any, in the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(UsernameHeader))
		if username == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), UsernameContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFrom returns the identity stored by Identity, or "".
func UsernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(UsernameContextKey).(string)
	return username
}
