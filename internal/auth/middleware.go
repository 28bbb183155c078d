package auth

import (
	"net/http"

	"rolevate/interview-service/internal/util"
)

// Middleware rejects requests without a valid company bearer token and
// stores the Session in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			util.JSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		sess, err := v.Verify(token)
		if err != nil {
			util.LoggerFromContext(r.Context()).Debug("rejected token", "err", err)
			util.JSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}
