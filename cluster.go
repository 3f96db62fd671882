// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"fmt"
	"slices"
)

// A Cluster is an [Element] made of an ordered sequence of members. The
// cluster as a whole is a single unit of the enclosing dependency graph and
// is submitted to the worker pool once; inside that one submission its
// members run strictly in the order they were given, each for its own loop
// count, and the whole sequence repeats for the cluster's loop count.
//
// Each member execution is traced as an element of its own. Dependencies
// declared directly between members are not consulted: member order alone
// decides execution order. Create Clusters with
// [Pipeline.CreateCluster].
type Cluster struct {
	element
	members []Element
}

// Members returns the cluster's members in execution order.
func (c *Cluster) Members() []Element {
	return slices.Clone(c.members)
}

func (c *Cluster) base() *element {
	if c == nil {
		return nil
	}
	return &c.element
}

func (c *Cluster) size() int {
	n := 0
	for _, m := range c.members {
		n += m.size()
	}
	return n
}

func (c *Cluster) execute(ctx context.Context, x *executor) (int, error) {
	if c.loop == 0 {
		return c.size(), nil
	}
	executed := 0
	err := loopCount(c.loop, func() error {
		executed = 0
		for _, m := range c.members {
			n, err := x.runElement(ctx, m.base())
			executed += n
			if err != nil {
				return fmt.Errorf("cluster %q member %q: %w", c.name, m.Name(), err)
			}
		}
		return nil
	})
	return executed, err
}

func (c *Cluster) initialize(ctx context.Context) error {
	for i, m := range c.members {
		if err := m.initialize(ctx); err != nil {
			_ = deinitializeAll(ctx, c.members[:i])
			return err
		}
	}
	return nil
}

func (c *Cluster) deinitialize(ctx context.Context) error {
	return deinitializeAll(ctx, c.members)
}

func (c *Cluster) release() error {
	c.members = nil
	return nil
}
