package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TriggerKind names the engine entry point an inbound event drives.
type TriggerKind string

const (
	TriggerOnboarding  TriggerKind = "onboarding"
	TriggerMeasurement TriggerKind = "measurement"
	TriggerPain        TriggerKind = "pain"
)

// Trigger is a decoded inbound event.
type Trigger struct {
	Kind   TriggerKind
	UserID string
}

var triggerKinds = map[string]TriggerKind{
	TypeOnboardingCompleted: TriggerOnboarding,
	TypeMeasurementRecorded: TriggerMeasurement,
	TypePainReported:        TriggerPain,
}

// DecodeTrigger parses the payload of a trigger event. Event types the service does not
// consume report ok=false without an error.
func DecodeTrigger(eventType string, payload []byte) (trigger Trigger, ok bool, err error) {
	kind, ok := triggerKinds[eventType]
	if !ok {
		return Trigger{}, false, nil
	}

	var userID string
	switch kind {
	case TriggerOnboarding:
		var evt OnboardingCompleted
		err = json.Unmarshal(payload, &evt)
		userID = evt.UserID
	case TriggerMeasurement:
		var evt MeasurementRecorded
		err = json.Unmarshal(payload, &evt)
		userID = evt.UserID
	case TriggerPain:
		var evt PainReported
		err = json.Unmarshal(payload, &evt)
		userID = evt.UserID
	}
	if err != nil {
		return Trigger{}, true, fmt.Errorf("decode %s: %w", eventType, err)
	}
	if strings.TrimSpace(userID) == "" {
		return Trigger{}, true, fmt.Errorf("decode %s: missing user_id", eventType)
	}
	return Trigger{Kind: kind, UserID: userID}, true, nil
}
