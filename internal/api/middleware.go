package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/interfaces"
	"localchat/backend/internal/model"
)

type contextKey string

const userContextKey contextKey = "user"

// authCookieName is the httponly cookie carrying the session token. A Bearer
// Authorization header is accepted as a fallback for non-browser clients.
const authCookieName = "auth_token"

// RequireAuth resolves the caller's identity from the auth cookie or Bearer
// header and injects the user into the request context. Requests without a
// valid credential are rejected with 401.
func RequireAuth(auth interfaces.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				respondWithError(w, app_errors.ErrUnauthorized)
				return
			}
			user, err := auth.ResolveUser(r.Context(), token)
			if err != nil {
				respondWithError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(authCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// userFromContext returns the authenticated user injected by RequireAuth.
func userFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// clientIP extracts the caller's address for rate-limit keying. The RealIP
// middleware has already rewritten RemoteAddr from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
