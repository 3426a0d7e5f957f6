// Package coalesce shares one in-flight call among concurrent callers with the same key.
package coalesce

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group coalesces calls returning V
type Group[V any] struct {
	sf singleflight.Group
}

// Result is what a caller observes from RunExclusive
type Result[V any] struct {
	Val    V
	Err    error
	Shared bool
}

// RunExclusive runs fn unless a call for key is already in flight, in which case
// it waits for that call and returns its outcome, error included. The key is
// released once the call completes so a later call runs fn again.
//
// Cancelling ctx abandons the wait but not the shared call.
func (g *Group[V]) RunExclusive(ctx context.Context, key string, fn func() (V, error)) Result[V] {
	ch := g.sf.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case <-ctx.Done():
		var zero V
		return Result[V]{Val: zero, Err: ctx.Err()}
	case res := <-ch:
		var v V
		if res.Val != nil {
			v = res.Val.(V)
		}
		return Result[V]{Val: v, Err: res.Err, Shared: res.Shared}
	}
}

// Forget drops the in-flight registration for key so the next call starts fresh
func (g *Group[V]) Forget(key string) {
	g.sf.Forget(key)
}
