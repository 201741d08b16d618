// Package resolver defines the tag-resolution collaborator contract:
// names, ids, or wildcard patterns in, canonical identifiers out.
// Implementations are expected to be side-effect-free and idempotent;
// this package supplies only the contract and the identity fallback
// used when no resolver is configured.
package resolver

import (
	"context"

	"github.com/adred-codev/taghub/internal/tag"
)

// Resolver turns a batch of names (tag ids, tag names, or wildcard
// patterns) into canonical Identifiers. It may emit fewer identifiers
// than names given — unknown or unauthorized inputs are simply
// dropped, never erred individually.
type Resolver interface {
	Resolve(ctx context.Context, names []string) ([]tag.Identifier, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, names []string) ([]tag.Identifier, error)

func (f ResolverFunc) Resolve(ctx context.Context, names []string) ([]tag.Identifier, error) {
	return f(ctx, names)
}

// Identity resolves every name to Identifier{Id: name, Name: name}.
// This is the manager's fallback when no resolver is configured and,
// because it performs no pattern matching, short-circuits wildcard
// support: every name is taken literally.
var Identity Resolver = ResolverFunc(func(_ context.Context, names []string) ([]tag.Identifier, error) {
	out := make([]tag.Identifier, 0, len(names))
	for _, n := range names {
		out = append(out, tag.Identifier{Id: n, Name: n})
	}
	return out, nil
})
