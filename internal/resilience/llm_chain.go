package resilience

import (
	"context"

	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

var _ llm.Provider = (*LLMChain)(nil)

// LLMChain is an [llm.Provider] that fails over across several chat backends.
type LLMChain struct {
	chain *Chain[llm.Provider]
}

// NewLLMChain creates an [LLMChain] that prefers primary.
func NewLLMChain(name string, primary llm.Provider, cfg ChainConfig) *LLMChain {
	return &LLMChain{chain: NewChain(name, primary, cfg)}
}

// Add registers a lower-priority backend.
func (c *LLMChain) Add(name string, p llm.Provider) {
	c.chain.Add(name, p)
}

// Providers returns the backend names in priority order.
func (c *LLMChain) Providers() []string {
	return c.chain.Names()
}

// Complete implements llm.Provider.
func (c *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, _, err := Do(ctx, c.chain, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	return resp, err
}

// Breaker returns the circuit breaker guarding the named backend, or nil.
func (c *LLMChain) Breaker(name string) *Breaker {
	return c.chain.Breaker(name)
}
