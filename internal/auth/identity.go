// Package auth resolves request sessions into an Identity. Credential checks
// happen elsewhere; this package only trusts tokens it can verify.
package auth

import "context"

// Kind tags which session produced an Identity.
type Kind string

const (
	KindNone     Kind = "none"
	KindCustomer Kind = "customer"
	KindAdmin    Kind = "admin"
)

// Identity is the caller a request acts on behalf of.
type Identity struct {
	Kind   Kind
	UserID string
}

// Anonymous is the identity of a request without a valid session.
var Anonymous = Identity{Kind: KindNone}

func (i Identity) IsCustomer() bool { return i.Kind == KindCustomer }

func (i Identity) IsAdmin() bool { return i.Kind == KindAdmin }

func (i Identity) IsAuthenticated() bool { return i.Kind != KindNone && i.UserID != "" }

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by Middleware, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
