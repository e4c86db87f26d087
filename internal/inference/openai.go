package inference

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"example.com/growth/internal/observability"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

type chatClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds provider and breaker settings.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxTokens       int
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Option configures optional behaviour for OpenAIGateway.
type Option func(*OpenAIGateway)

// WithLogger overrides the logger used to report provider failures.
func WithLogger(logger *log.Logger) Option {
	return func(g *OpenAIGateway) {
		g.logger = logger
	}
}

// WithChatClient replaces the HTTP client, mainly for tests.
func WithChatClient(client chatClient) Option {
	return func(g *OpenAIGateway) {
		g.client = client
	}
}

// OpenAIGateway calls the chat completions API once per request. Consecutive failures open a
// circuit breaker; while it is open calls fail immediately so callers go straight to fallback.
type OpenAIGateway struct {
	client    chatClient
	breaker   *gobreaker.CircuitBreaker
	model     string
	timeout   time.Duration
	maxTokens int
	logger    *log.Logger
}

// NewOpenAIGateway constructs a gateway for the configured provider.
func NewOpenAIGateway(cfg Config, opts ...Option) *OpenAIGateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	g := &OpenAIGateway{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		logger:    log.New(log.Writer(), "[inference] ", log.LstdFlags|log.Lshortfile),
	}
	failures := cfg.BreakerFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Printf("breaker %s: %s -> %s", name, from, to)
		},
	})
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete implements Gateway.
func (g *OpenAIGateway) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: 0,
			MaxTokens:   g.maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrNoResult
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return nil, ErrNoResult
		}
		return content, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "breaker_open"
		}
		observability.ObserveInferenceCall(result, elapsed)
		g.logger.Printf("completion failed (model=%s, elapsed=%s): %v", g.model, elapsed.Round(time.Millisecond), err)
		return "", fmt.Errorf("inference: %w", err)
	}

	observability.ObserveInferenceCall("ok", elapsed)
	return out.(string), nil
}
