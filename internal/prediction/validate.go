package prediction

import (
	"encoding/json"
	"fmt"
	"math"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/inference"
)

// Estimate is the numeric content of a prediction before it becomes a record.
type Estimate struct {
	HeightCm                int
	Percentile              int
	DreamHeightOdds         int
	GrowthCompletionPercent int
}

type rawEstimate struct {
	PredictedAdultHeightCm  *float64 `json:"predictedAdultHeightCm"`
	Percentile              *float64 `json:"percentile"`
	DreamHeightOddsPercent  *float64 `json:"dreamHeightOddsPercent"`
	GrowthCompletionPercent *float64 `json:"growthCompletionPercent"`
}

// Parse validates a gateway answer. Every field must be present, numeric and in range.
func Parse(raw string) (Estimate, error) {
	body := inference.ExtractJSON(raw)
	if body == "" {
		return Estimate{}, fmt.Errorf("no JSON object in answer")
	}

	var parsed rawEstimate
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return Estimate{}, fmt.Errorf("decode answer: %w", err)
	}

	checks := []struct {
		name     string
		value    *float64
		min, max float64
	}{
		{"predictedAdultHeightCm", parsed.PredictedAdultHeightCm, domain.MinPredictedHeightCm, domain.MaxPredictedHeightCm},
		{"percentile", parsed.Percentile, domain.MinPercentile, domain.MaxPercentile},
		{"dreamHeightOddsPercent", parsed.DreamHeightOddsPercent, 0, 100},
		{"growthCompletionPercent", parsed.GrowthCompletionPercent, 0, 100},
	}
	for _, c := range checks {
		if c.value == nil {
			return Estimate{}, fmt.Errorf("%s missing", c.name)
		}
		if *c.value < c.min || *c.value > c.max {
			return Estimate{}, fmt.Errorf("%s=%v outside [%v,%v]", c.name, *c.value, c.min, c.max)
		}
	}

	return Estimate{
		HeightCm:                int(math.Round(*parsed.PredictedAdultHeightCm)),
		Percentile:              int(math.Round(*parsed.Percentile)),
		DreamHeightOdds:         int(math.Round(*parsed.DreamHeightOddsPercent)),
		GrowthCompletionPercent: int(math.Round(*parsed.GrowthCompletionPercent)),
	}, nil
}
