package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/events"
)

// Triggers is the subset of the generation engine driven by Kafka events.
type Triggers interface {
	OnboardingCompleted(ctx context.Context, userID string) error
	MeasurementRecorded(ctx context.Context, userID string) error
	PainReported(ctx context.Context, userID string) error
}

// TriggerHandler routes decoded triggers to the generation engine.
type TriggerHandler struct {
	triggers Triggers
	logger   *log.Logger
}

// NewTriggerHandler constructs a TriggerHandler.
func NewTriggerHandler(triggers Triggers, logger *log.Logger) *TriggerHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[triggers] ", log.LstdFlags)
	}
	return &TriggerHandler{triggers: triggers, logger: logger}
}

// Handle runs the trigger carried by msg. Events for users whose onboarding data or
// prediction is missing are logged and acknowledged; retrying them cannot succeed.
func (h *TriggerHandler) Handle(ctx context.Context, msg Message) error {
	if msg.Trigger == nil {
		h.logger.Printf("ignoring event_type=%s on topic=%s", msg.EventType, msg.Topic)
		return nil
	}

	var run func(context.Context, string) error
	switch msg.Trigger.Kind {
	case events.TriggerOnboarding:
		run = h.triggers.OnboardingCompleted
	case events.TriggerMeasurement:
		run = h.triggers.MeasurementRecorded
	case events.TriggerPain:
		run = h.triggers.PainReported
	default:
		return fmt.Errorf("unsupported trigger %q", msg.Trigger.Kind)
	}

	userID := msg.Trigger.UserID
	if err := run(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) || errors.Is(err, domain.ErrMeasurementNotFound) ||
			errors.Is(err, domain.ErrPredictionNotFound) {
			h.logger.Printf("skipping %s trigger for user=%s: %v", msg.Trigger.Kind, userID, err)
			return nil
		}
		return fmt.Errorf("%s: %w", msg.EventType, err)
	}
	return nil
}
