package contextkeys

// CtxKey is a custom type for context keys to avoid collisions.
type CtxKey string

const (
	// RequestBodyKey is the key for storing the raw request body in the context.
	RequestBodyKey CtxKey = "requestBody"
	// RequestIDKey holds the request id set by the RequestID middleware.
	RequestIDKey CtxKey = "requestID"
	// UsernameKey holds the authenticated write-boundary user.
	UsernameKey CtxKey = "username"
)
