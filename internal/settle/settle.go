// Package settle runs independent branches concurrently and waits for all
// of them, capturing each branch's result instead of failing fast.
package settle

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one branch.
type Outcome[T any] struct {
	Value T
	Err   error
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

// All runs every branch and returns their outcomes in branch order. A failing
// branch never cancels the others.
func All[T any](ctx context.Context, branches ...func(ctx context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(branches))

	var g errgroup.Group
	for i, branch := range branches {
		g.Go(func() error {
			v, err := branch(ctx)
			outcomes[i] = Outcome[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
