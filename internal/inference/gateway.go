// Package inference adapts a chat-completion provider to the single-attempt gateway contract
// used by the prediction and routine engines.
package inference

import (
	"context"
	"errors"

	"example.com/growth/internal/config"
)

var (
	// ErrNoResult is returned when the provider answered without usable content.
	ErrNoResult = errors.New("inference returned no result")
	// ErrDisabled is returned by the Noop gateway.
	ErrDisabled = errors.New("inference disabled")
)

// Gateway completes a system/user prompt pair. Implementations make exactly one attempt;
// any transport, auth or timeout problem is reported as an error and treated as "no result".
type Gateway interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Noop never answers, forcing the deterministic fallback.
type Noop struct{}

// Complete implements Gateway.
func (Noop) Complete(context.Context, string, string) (string, error) { return "", ErrDisabled }

// Func adapts a plain function to Gateway.
type Func func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Complete implements Gateway.
func (f Func) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// FromConfig returns the OpenAI gateway when an API key is configured and Noop otherwise.
func FromConfig(cfg config.InferenceConfig, opts ...Option) Gateway {
	if !cfg.Enabled() {
		return Noop{}
	}
	failures := cfg.BreakerFailures
	if failures < 0 {
		failures = 0
	}
	return NewOpenAIGateway(Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		Timeout:         cfg.Timeout,
		MaxTokens:       cfg.MaxTokens,
		BreakerFailures: uint32(failures),
		BreakerCooldown: cfg.BreakerCooldown,
	}, opts...)
}
