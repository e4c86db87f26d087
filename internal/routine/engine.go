package routine

import (
	"context"
	"log"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/generation"
	"example.com/growth/internal/inference"
	"example.com/growth/internal/observability"
)

// Option configures optional behaviour for the Engine.
type Option func(*Engine)

// WithLogger overrides the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCatalog replaces the embedded catalog.
func WithCatalog(catalog *Catalog) Option {
	return func(e *Engine) {
		if catalog != nil {
			e.catalog = catalog
		}
	}
}

// Engine generates plans. It is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	gateway inference.Gateway
	logger  *log.Logger
}

// NewEngine constructs an Engine over the embedded catalog. A nil gateway always uses the
// fallback.
func NewEngine(gateway inference.Gateway, opts ...Option) *Engine {
	if gateway == nil {
		gateway = inference.Noop{}
	}
	e := &Engine{
		catalog: DefaultCatalog(),
		gateway: gateway,
		logger:  log.New(log.Writer(), "[routine] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog exposes the catalog in use.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Generate returns a structurally valid plan for the input and the source that produced it.
// The input mode must already be valid.
func (e *Engine) Generate(ctx context.Context, in Input) ([]domain.RoutineDay, domain.Source) {
	outcome := e.attempt(ctx, in)
	observability.RecordGenerationOutcome("routine", outcome.Kind.String())
	if outcome.Kind != generation.Validated {
		e.logger.Printf("using fallback (user=%s, mode=%s, outcome=%s): %s", in.UserID, in.Mode, outcome.Kind, outcome.Reason)
	}

	return generation.Resolve(outcome, func() []domain.RoutineDay {
		return e.catalog.Fallback(in.Mode)
	})
}

func (e *Engine) attempt(ctx context.Context, in Input) generation.Outcome[[]domain.RoutineDay] {
	userPrompt, err := e.catalog.UserPrompt(in)
	if err != nil {
		return generation.NewUnavailable[[]domain.RoutineDay](err)
	}
	raw, err := e.gateway.Complete(ctx, SystemPrompt(), userPrompt)
	if err != nil {
		return generation.NewUnavailable[[]domain.RoutineDay](err)
	}
	if raw == "" {
		return generation.NewUnavailable[[]domain.RoutineDay](nil)
	}
	days, err := e.catalog.Parse(raw)
	if err != nil {
		return generation.NewRejected[[]domain.RoutineDay](err.Error())
	}
	return generation.NewValidated(days)
}
