package guard

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAliasedInvocation marks a call routed through a foreign execution context.
var ErrAliasedInvocation = errors.New("aliased invocation rejected")

type invocationTargetKey struct{}

// WithInvocationTarget records the address a call was routed through.
func WithInvocationTarget(ctx context.Context, target common.Address) context.Context {
	return context.WithValue(ctx, invocationTargetKey{}, target)
}

// Check rejects calls whose recorded target differs from self. Calls with no
// recorded target are direct and pass.
func Check(ctx context.Context, self common.Address) error {
	target, ok := ctx.Value(invocationTargetKey{}).(common.Address)
	if !ok {
		return nil
	}
	if target != self {
		return ErrAliasedInvocation
	}
	return nil
}
