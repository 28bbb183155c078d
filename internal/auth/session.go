// Package auth authenticates company users on the interview API and
// carries their session explicitly through the request context.
package auth

import "context"

// Session is the authenticated caller of a company route.
type Session struct {
	UserID    string
	CompanyID string
	Role      string
}

type sessionContextKey struct{}

// ContextWithSession returns ctx carrying s.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session set by Middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}
