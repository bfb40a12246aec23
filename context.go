package tenantauth

import "context"

type sessionContextKey struct{}

// WithSession stores a verified session on the context. Handlers that
// verified a token once can hand the result down the call chain instead
// of re-verifying.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the session stored by [WithSession].
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}
