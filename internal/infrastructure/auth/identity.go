package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

// Identity is the verified caller: who the request acts on behalf of.
type Identity struct {
	UserID        uuid.UUID
	PreferredName string
	Email         string
}

// Resolver extracts the caller identity from a request. Implementations
// must be side-effect free.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// HeaderResolver trusts an explicit User-Id header set by an upstream
// gateway that already authenticated the caller.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (Identity, error) {
	raw := r.Header.Get("User-Id")
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: User-Id header missing", pkgerrors.ErrUnauthenticated)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid User-Id header", pkgerrors.ErrUnauthenticated)
	}
	return Identity{UserID: id}, nil
}

// ContextResolver reads the identity placed on the request context by the
// JWT middleware.
type ContextResolver struct{}

func (ContextResolver) Resolve(r *http.Request) (Identity, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return Identity{}, pkgerrors.ErrUnauthenticated
	}
	return id, nil
}
