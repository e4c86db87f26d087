// Package prediction produces height predictions from a profile snapshot, preferring the
// inference gateway and falling back to a parental-height formula.
package prediction

import (
	"context"
	"log"
	"math"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/generation"
	"example.com/growth/internal/inference"
	"example.com/growth/internal/observability"
)

// Fallback constants.
const (
	genderOffsetCm     = 5
	measurementNudgeCm = 1
	midpointPercent    = 50
)

// Option configures optional behaviour for the Engine.
type Option func(*Engine)

// WithLogger overrides the logger used to report rejected or unavailable answers.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine runs the generate, validate, fallback and ratchet pipeline. It keeps no state
// between calls.
type Engine struct {
	gateway inference.Gateway
	logger  *log.Logger
}

// NewEngine constructs an Engine. A nil gateway always uses the fallback.
func NewEngine(gateway inference.Gateway, opts ...Option) *Engine {
	if gateway == nil {
		gateway = inference.Noop{}
	}
	e := &Engine{
		gateway: gateway,
		logger:  log.New(log.Writer(), "[prediction] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict returns a prediction for the profile. Gateway failures never surface; the only
// error is a missing profile. ID, Fingerprint and CreatedAt are left for the caller.
func (e *Engine) Predict(ctx context.Context, profile *domain.ProfileSnapshot, latest *domain.Measurement, previous *domain.PredictionRecord) (domain.PredictionRecord, error) {
	if profile == nil {
		return domain.PredictionRecord{}, domain.ErrProfileNotFound
	}

	outcome := e.attempt(ctx, NewInput(*profile, latest))
	observability.RecordGenerationOutcome("prediction", outcome.Kind.String())
	if outcome.Kind != generation.Validated {
		e.logger.Printf("using fallback (user=%s, outcome=%s): %s", profile.UserID, outcome.Kind, outcome.Reason)
	}

	estimate, source := generation.Resolve(outcome, func() Estimate {
		return Fallback(*profile, latest)
	})
	estimate = Ratchet(estimate, profile.DreamHeightCm, previous, latest)

	return domain.PredictionRecord{
		UserID:                  profile.UserID,
		PredictedHeightCm:       estimate.HeightCm,
		Percentile:              estimate.Percentile,
		DreamHeightOdds:         estimate.DreamHeightOdds,
		GrowthCompletionPercent: estimate.GrowthCompletionPercent,
		Source:                  source,
	}, nil
}

func (e *Engine) attempt(ctx context.Context, in Input) generation.Outcome[Estimate] {
	userPrompt, err := UserPrompt(in)
	if err != nil {
		return generation.NewUnavailable[Estimate](err)
	}
	raw, err := e.gateway.Complete(ctx, SystemPrompt(), userPrompt)
	if err != nil {
		return generation.NewUnavailable[Estimate](err)
	}
	if raw == "" {
		return generation.NewUnavailable[Estimate](nil)
	}
	estimate, err := Parse(raw)
	if err != nil {
		return generation.NewRejected[Estimate](err.Error())
	}
	return generation.NewValidated(estimate)
}

// Fallback computes the dependency-free estimate: mid-parental height shifted by gender,
// nudged one unit toward the latest measurement.
func Fallback(profile domain.ProfileSnapshot, latest *domain.Measurement) Estimate {
	base := float64(profile.MotherHeightCm+profile.FatherHeightCm) / 2

	switch profile.Gender {
	case domain.GenderMale:
		base += genderOffsetCm
	case domain.GenderFemale:
		base -= genderOffsetCm
	}

	if latest != nil {
		measured := float64(latest.HeightCm)
		if measured > base {
			base += measurementNudgeCm
		} else if measured < base {
			base -= measurementNudgeCm
		}
	}

	height := int(math.Round(base))
	return Estimate{
		HeightCm:                height,
		Percentile:              midpointPercent,
		DreamHeightOdds:         DreamOdds(profile.DreamHeightCm, height),
		GrowthCompletionPercent: midpointPercent,
	}
}

// DreamOdds buckets the gap between the dream height and a predicted height.
func DreamOdds(dreamHeightCm, predictedHeightCm int) int {
	gap := dreamHeightCm - predictedHeightCm
	switch {
	case gap <= -5:
		return 80
	case gap <= 0:
		return 60
	case gap <= 5:
		return 40
	default:
		return 20
	}
}

// Ratchet keeps predictions monotonic: the height never drops below the previous prediction
// or the latest measurement, and always lands in the stored bounds. When the height is
// raised the dream odds are recomputed from the new value.
func Ratchet(estimate Estimate, dreamHeightCm int, previous *domain.PredictionRecord, latest *domain.Measurement) Estimate {
	height := estimate.HeightCm
	if previous != nil && previous.PredictedHeightCm > height {
		height = previous.PredictedHeightCm
	}
	if latest != nil && latest.HeightCm > height {
		height = latest.HeightCm
	}
	height = clamp(height, domain.MinPredictedHeightCm, domain.MaxPredictedHeightCm)

	if height != estimate.HeightCm {
		estimate.DreamHeightOdds = DreamOdds(dreamHeightCm, height)
		estimate.HeightCm = height
	}
	return estimate
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
