package httpapi

import (
	"context"
	"net/http"
	"strings"

	"pocketsync/internal/common"
	"pocketsync/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authMiddleware validates the bearer token and stores the account ID in the
// request context. An expired token is reported with its sentinel message so
// the device knows to refresh and replay.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(r.Context(), w, common.ErrorUnauthorized)
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
