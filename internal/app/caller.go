package app

import (
	"context"
	"strings"
)

// Caller is the authenticated user a request runs as.
type Caller struct {
	UserID      string
	Subject     string
	DisplayName string
}

// callerContextKey stores context keys for caller identity.
type callerContextKey struct{}

// WithCaller attaches a normalized caller to context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, normalizeCaller(caller))
}

// CallerFromContext returns the caller when one with a user id is present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	if !ok {
		return Caller{}, false
	}
	caller = normalizeCaller(caller)
	if caller.UserID == "" {
		return Caller{}, false
	}
	return caller, true
}

// normalizeCaller trims caller fields.
func normalizeCaller(caller Caller) Caller {
	caller.UserID = strings.TrimSpace(caller.UserID)
	caller.Subject = strings.TrimSpace(caller.Subject)
	caller.DisplayName = strings.TrimSpace(caller.DisplayName)
	return caller
}
