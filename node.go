// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pipegraph

import (
	"context"
	"io"
)

// A Node is the plain [Element] variant: it runs a single [Task]. Create
// Nodes with [Pipeline.CreateNode].
type Node struct {
	element
	task Task
}

// Task returns the task the node runs.
func (n *Node) Task() Task {
	return n.task
}

func (n *Node) base() *element {
	if n == nil {
		return nil
	}
	return &n.element
}

func (n *Node) size() int {
	return 1
}

func (n *Node) execute(ctx context.Context, x *executor) (int, error) {
	err := loopCount(n.loop, func() error {
		return n.task.Run(ctx)
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (n *Node) initialize(ctx context.Context) error {
	if i, ok := n.task.(Initializer); ok {
		return i.Init(ctx)
	}
	return nil
}

func (n *Node) deinitialize(ctx context.Context) error {
	if d, ok := n.task.(Deinitializer); ok {
		return d.Deinit(ctx)
	}
	return nil
}

func (n *Node) release() error {
	if c, ok := n.task.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
