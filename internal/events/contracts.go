package events

const predictionCreatedSchema = `{
  "type": "object",
  "title": "PredictionCreated",
  "properties": {
    "prediction_id": {"type": "string"},
    "user_id": {"type": "string"},
    "predicted_height_cm": {"type": "integer", "minimum": 100, "maximum": 250},
    "percentile": {"type": "integer", "minimum": 1, "maximum": 99},
    "dream_height_odds": {"type": "integer", "minimum": 0, "maximum": 100},
    "growth_completion_percent": {"type": "integer", "minimum": 0, "maximum": 100},
    "source": {"type": "string", "enum": ["inference", "fallback"]},
    "fingerprint": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["prediction_id", "user_id", "predicted_height_cm", "percentile", "dream_height_odds", "growth_completion_percent", "source", "fingerprint", "created_at"],
  "additionalProperties": false
}`

const routineGeneratedSchema = `{
  "type": "object",
  "title": "RoutineGenerated",
  "properties": {
    "routine_id": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string", "enum": ["active", "recovery"]},
    "period_label": {"type": "string"},
    "source": {"type": "string", "enum": ["inference", "fallback"]},
    "fingerprint": {"type": "string"},
    "day_count": {"type": "integer"},
    "task_count": {"type": "integer"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["routine_id", "user_id", "status", "period_label", "source", "fingerprint", "day_count", "task_count", "created_at"],
  "additionalProperties": false
}`

// Contract describes a published event: the topic it goes to and the JSON schema registered
// for it under the topic's value subject.
type Contract struct {
	EventType string
	Topic     string
	Schema    string
}

// Subject returns the Schema Registry subject of the contract.
func (c Contract) Subject() string { return Subject(c.Topic) }

var contracts = map[string]Contract{
	TypePredictionCreated: {EventType: TypePredictionCreated, Topic: TopicPredictions, Schema: predictionCreatedSchema},
	TypeRoutineGenerated:  {EventType: TypeRoutineGenerated, Topic: TopicRoutines, Schema: routineGeneratedSchema},
}

// ContractFor returns the contract of a published event type.
func ContractFor(eventType string) (Contract, bool) {
	c, ok := contracts[eventType]
	return c, ok
}
