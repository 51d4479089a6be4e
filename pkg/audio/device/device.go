// Package device binds the audio abstractions to real hardware: a
// [Microphone] that captures and Opus-encodes the default input device, and
// a [Speaker] that decodes remote tracks to the default output device.
//
// Both run on miniaudio through malgo and share one [Context].
package device

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// Context owns the miniaudio backend context.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initialises the platform's default audio backend.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("device: init audio context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close releases the backend. Devices created from c must be stopped first.
func (c *Context) Close() error {
	err := c.ctx.Uninit()
	c.ctx.Free()
	if err != nil {
		return fmt.Errorf("device: uninit audio context: %w", err)
	}
	return nil
}
