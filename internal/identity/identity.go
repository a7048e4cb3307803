// Package identity supplies the current user's opaque id. Notes are scoped
// per user; a missing identity is a precondition failure for every write.
package identity

import (
	"context"
	"strings"

	"github.com/hpungsan/scribe/internal/errors"
)

// Provider resolves the user on whose behalf a call runs.
// UserID must be cheap and non-blocking; it returns UNAUTHENTICATED when
// nobody is signed in.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Static is a Provider for a fixed user. The empty Static is signed out.
type Static string

// UserID implements Provider.
func (s Static) UserID(context.Context) (string, error) {
	uid := strings.TrimSpace(string(s))
	if uid == "" {
		return "", errors.NewUnauthenticated("")
	}
	return uid, nil
}

type ctxKey struct{}

// WithUser returns a context carrying uid.
func WithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uid)
}

// FromContext is a Provider reading the user placed by WithUser.
type FromContext struct{}

// UserID implements Provider.
func (FromContext) UserID(ctx context.Context) (string, error) {
	uid, _ := ctx.Value(ctxKey{}).(string)
	if uid == "" {
		return "", errors.NewUnauthenticated("")
	}
	return uid, nil
}
