package main

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// terminalControl renders a send control as "[channel] label" lines. It prints only
// when the visible text changes and dies with its context.
type terminalControl struct {
	ctx     context.Context
	channel string
	out     io.Writer

	mu       sync.Mutex
	label    string
	disabled bool
}

func newTerminalControl(ctx context.Context, channel string, out io.Writer) *terminalControl {
	return &terminalControl{ctx: ctx, channel: channel, out: out}
}

func (c *terminalControl) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
}

func (c *terminalControl) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if label == c.label {
		return
	}
	c.label = label
	fmt.Fprintf(c.out, "[%s] %s\n", c.channel, label)
}

func (c *terminalControl) Alive() bool {
	return c.ctx.Err() == nil
}

func (c *terminalControl) state() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled, c.label
}
