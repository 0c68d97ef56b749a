package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/filter"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

const notFoundHint = `Element with %s not found. Check the UI hierarchy in debug artifacts to verify if the element exists.

Possible causes:
- Element selector may be incorrect - check if there are similar elements with slightly different names/properties.
- Element may be temporarily unavailable due to loading state.
- This could be a real regression that needs to be addressed.`

// foundElement is a resolved element and the snapshot it was found in.
type foundElement struct {
	element core.UIElement
	root    *core.TreeNode
}

// lookupTimeout returns the default element timeout, shortened by the
// time since the last interaction.
func (o *Orchestra) lookupTimeout(optional bool) time.Duration {
	if optional {
		return o.adjusted(o.opts.OptionalLookupTimeout)
	}
	return o.adjusted(o.opts.LookupTimeout)
}

func (o *Orchestra) compileSelector(ctx context.Context, sel *flow.Selector) (filter.Compiled, error) {
	var opts filter.Options
	if q, ok := o.driver.(core.CSSQuerier); ok {
		opts.CSS = func(css string) []*core.TreeNode {
			nodes, err := q.QueryCSS(ctx, css)
			if err != nil {
				logger.Debug("css query %q failed: %v", css, err)
				return nil
			}
			return nodes
		}
	}
	return filter.Compile(sel, opts)
}

// findElement polls fresh snapshots until sel resolves or timeout elapses.
// A childOf chain is resolved outermost first within the same snapshot and
// the next level is searched inside the first match's subtree.
func (o *Orchestra) findElement(ctx context.Context, sel *flow.Selector, timeout time.Duration) (*foundElement, error) {
	if err := filter.CheckCycles(sel); err != nil {
		return nil, err
	}

	var chain []filter.Compiled
	for s := sel; s != nil; s = s.ChildOf {
		c, err := o.compileSelector(ctx, s)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
	}

	var (
		root    *core.TreeNode
		match   *core.TreeNode
		missing = chain[0]
	)
	ok, err := pollUntil(ctx, timeout, lookupInterval, func() (bool, error) {
		r, err := o.driver.ViewHierarchy(ctx)
		if err != nil {
			return false, err
		}
		root = r
		scope := r.Aggregate()
		for i := len(chain) - 1; i >= 0; i-- {
			matches := chain[i].Filter(scope)
			if len(matches) == 0 {
				missing = chain[i]
				return false, nil
			}
			if i == 0 {
				match = matches[0]
				return true, nil
			}
			scope = matches[0].Aggregate()
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ElementNotFound(
			"Element not found: "+missing.Description,
			root,
			fmt.Sprintf(notFoundHint, missing.Description),
		)
	}
	return &foundElement{element: core.ToUIElement(match), root: root}, nil
}
