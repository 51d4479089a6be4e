package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllFailed is returned when every link of a [Chain] failed or was skipped
// by its breaker.
var ErrAllFailed = errors.New("all providers failed")

// Attempt describes one call made by a [Chain] against a single link.
type Attempt struct {
	Provider string
	Duration time.Duration
	Err      error
}

// ChainConfig configures a [Chain].
type ChainConfig struct {
	// Breaker is the template for the per-link breakers. Name is overwritten
	// with each link's name.
	Breaker BreakerConfig

	// Observe, if set, receives every attempt that reached a provider.
	// Attempts rejected by an open breaker are not reported.
	Observe func(Attempt)
}

type link[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain orders upstreams of the same kind by preference. Links are added
// during setup and must not be added concurrently with calls.
type Chain[T any] struct {
	links []link[T]
	cfg   ChainConfig
}

// NewChain creates a [Chain] whose first link is primary.
func NewChain[T any](name string, primary T, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add appends a lower-priority link.
func (c *Chain[T]) Add(name string, value T) {
	bc := c.cfg.Breaker
	bc.Name = name
	c.links = append(c.links, link[T]{name: name, value: value, breaker: NewBreaker(bc)})
}

// Names returns the link names in priority order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Breaker returns the breaker guarding the named link, or nil.
func (c *Chain[T]) Breaker(name string) *Breaker {
	for _, l := range c.links {
		if l.name == name {
			return l.breaker
		}
	}
	return nil
}

// Do calls fn against each link in order until one succeeds and returns the
// result together with the name of the link that produced it. It stops early
// when ctx is done. Do is a function rather than a method because methods
// cannot declare type parameters.
func Do[T, R any](ctx context.Context, c *Chain[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.links {
		if err := ctx.Err(); err != nil {
			return zero, "", fmt.Errorf("resilience: %w", err)
		}

		l := &c.links[i]
		var out R
		start := time.Now()
		err := l.breaker.Execute(func() error {
			var callErr error
			out, callErr = fn(ctx, l.value)
			return callErr
		})
		if err == nil {
			c.observe(Attempt{Provider: l.name, Duration: time.Since(start)})
			return out, l.name, nil
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", l.name)
			continue
		}
		c.observe(Attempt{Provider: l.name, Duration: time.Since(start), Err: err})
		slog.Warn("provider failed, trying next", "provider", l.name, "err", err)
	}
	return zero, "", fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

func (c *Chain[T]) observe(a Attempt) {
	if c.cfg.Observe != nil {
		c.cfg.Observe(a)
	}
}
