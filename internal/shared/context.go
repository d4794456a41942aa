package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ActorFromContext returns the authenticated actor ID, or 0 when anonymous.
func ActorFromContext(ctx context.Context) int64 {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return 0
	}
	return sess.Actor()
}
