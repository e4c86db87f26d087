package domain

import "time"

// Bounds for a stored prediction.
const (
	MinPredictedHeightCm = 100
	MaxPredictedHeightCm = 250
	MinPercentile        = 1
	MaxPercentile        = 99
)

// Source identifies which generation tier produced a record.
type Source string

const (
	SourceInference Source = "inference"
	SourceFallback  Source = "fallback"
)

// PredictionRecord is an immutable height prediction. The latest record by CreatedAt wins.
type PredictionRecord struct {
	ID                      string
	UserID                  string
	PredictedHeightCm       int
	Percentile              int
	DreamHeightOdds         int
	GrowthCompletionPercent int
	Source                  Source
	Fingerprint             string
	CreatedAt               time.Time
}
