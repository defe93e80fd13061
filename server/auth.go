// ABOUTME: Bearer-token authentication that resolves the calling user from the datastore.
// ABOUTME: Tokens are looked up by their SHA-256 hash; the user is carried in the request context.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/2389-research/sitegen/store"
)

type ctxKey int

const userKey ctxKey = iota

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		u, err := s.store.UserByToken(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		if err != nil {
			log.Printf("component=server action=auth_failed err=%v", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// userFrom returns the authenticated user. Only valid behind requireUser.
func userFrom(ctx context.Context) store.User {
	u, _ := ctx.Value(userKey).(store.User)
	return u
}
