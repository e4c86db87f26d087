package prediction

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/growth/internal/domain"
	"example.com/growth/internal/inference"
)

func testProfile() domain.ProfileSnapshot {
	return domain.ProfileSnapshot{
		UserID:            "user-1",
		Gender:            domain.GenderMale,
		Ethnicity:         "mixed",
		WorkoutCapacity:   "moderate",
		DateOfBirth:       time.Date(2010, time.April, 3, 0, 0, 0, 0, time.UTC),
		MotherHeightCm:    165,
		FatherHeightCm:    175,
		FootSizeCm:        26,
		AverageSleepHours: 8,
		DreamHeightCm:     180,
	}
}

func newTestEngine(gw inference.Gateway) *Engine {
	return NewEngine(gw, WithLogger(log.New(io.Discard, "", 0)))
}

func answering(content string, err error) inference.Gateway {
	return inference.Func(func(context.Context, string, string) (string, error) {
		return content, err
	})
}

func TestFallbackMaleNoMeasurement(t *testing.T) {
	est := Fallback(testProfile(), nil)
	require.Equal(t, 175, est.HeightCm)
	require.Equal(t, 50, est.Percentile)
	require.Equal(t, 40, est.DreamHeightOdds)
	require.Equal(t, 50, est.GrowthCompletionPercent)
}

func TestFallbackGenderAndMeasurementNudge(t *testing.T) {
	profile := testProfile()
	profile.Gender = domain.GenderFemale
	require.Equal(t, 165, Fallback(profile, nil).HeightCm)

	profile.Gender = domain.GenderNonBinary
	require.Equal(t, 170, Fallback(profile, nil).HeightCm)

	require.Equal(t, 171, Fallback(profile, &domain.Measurement{HeightCm: 172}).HeightCm)
	require.Equal(t, 169, Fallback(profile, &domain.Measurement{HeightCm: 150}).HeightCm)
	require.Equal(t, 170, Fallback(profile, &domain.Measurement{HeightCm: 170}).HeightCm)
}

func TestFallbackRoundsHalfUp(t *testing.T) {
	profile := testProfile()
	profile.Gender = domain.GenderUnspecified
	profile.MotherHeightCm = 160
	profile.FatherHeightCm = 171
	require.Equal(t, 166, Fallback(profile, nil).HeightCm)
}

func TestDreamOddsBuckets(t *testing.T) {
	require.Equal(t, 80, DreamOdds(170, 175))
	require.Equal(t, 60, DreamOdds(171, 175))
	require.Equal(t, 60, DreamOdds(175, 175))
	require.Equal(t, 40, DreamOdds(180, 175))
	require.Equal(t, 20, DreamOdds(181, 175))
}

func TestPredictUsesValidatedAnswer(t *testing.T) {
	engine := newTestEngine(answering(`{"predictedAdultHeightCm": 178.4, "percentile": 72, "dreamHeightOddsPercent": 55, "growthCompletionPercent": 81}`, nil))

	profile := testProfile()
	record, err := engine.Predict(context.Background(), &profile, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.SourceInference, record.Source)
	require.Equal(t, 178, record.PredictedHeightCm)
	require.Equal(t, 72, record.Percentile)
	require.Equal(t, 55, record.DreamHeightOdds)
	require.Equal(t, 81, record.GrowthCompletionPercent)
	require.Equal(t, "user-1", record.UserID)
}

func TestPredictFallsBackOnGatewayError(t *testing.T) {
	engine := newTestEngine(answering("", errors.New("timeout")))
	profile := testProfile()

	record, err := engine.Predict(context.Background(), &profile, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.SourceFallback, record.Source)
	require.Equal(t, 175, record.PredictedHeightCm)
	require.Equal(t, 40, record.DreamHeightOdds)
}

func TestPredictFallsBackOnInvalidAnswer(t *testing.T) {
	answers := []string{
		`{"predictedAdultHeightCm": 300, "percentile": 50, "dreamHeightOddsPercent": 50, "growthCompletionPercent": 50}`,
		`{"predictedAdultHeightCm": 170, "percentile": 0, "dreamHeightOddsPercent": 50, "growthCompletionPercent": 50}`,
		`{"predictedAdultHeightCm": 170, "percentile": 50, "dreamHeightOddsPercent": 101, "growthCompletionPercent": 50}`,
		`{"predictedAdultHeightCm": 170, "percentile": 50, "dreamHeightOddsPercent": 50}`,
		`{"predictedAdultHeightCm": "170", "percentile": 50, "dreamHeightOddsPercent": 50, "growthCompletionPercent": 50}`,
		`{"error": "cannot comply"}`,
		`not json`,
	}
	profile := testProfile()
	for _, answer := range answers {
		engine := newTestEngine(answering(answer, nil))
		record, err := engine.Predict(context.Background(), &profile, nil, nil)
		require.NoError(t, err, answer)
		require.Equal(t, domain.SourceFallback, record.Source, answer)
		require.Equal(t, 175, record.PredictedHeightCm, answer)
	}
}

func TestPredictRatchetsAgainstHistory(t *testing.T) {
	engine := newTestEngine(answering(`{"predictedAdultHeightCm": 170, "percentile": 40, "dreamHeightOddsPercent": 30, "growthCompletionPercent": 60}`, nil))
	profile := testProfile()

	previous := &domain.PredictionRecord{PredictedHeightCm: 177}
	record, err := engine.Predict(context.Background(), &profile, nil, previous)
	require.NoError(t, err)
	require.Equal(t, 177, record.PredictedHeightCm)
	require.Equal(t, 40, record.Percentile)
	require.Equal(t, DreamOdds(profile.DreamHeightCm, 177), record.DreamHeightOdds)

	latest := &domain.Measurement{HeightCm: 182}
	record, err = engine.Predict(context.Background(), &profile, latest, previous)
	require.NoError(t, err)
	require.Equal(t, 182, record.PredictedHeightCm)
}

func TestPredictStaysInBounds(t *testing.T) {
	engine := newTestEngine(nil)
	profile := testProfile()
	profile.MotherHeightCm = 60
	profile.FatherHeightCm = 70

	record, err := engine.Predict(context.Background(), &profile, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.MinPredictedHeightCm, record.PredictedHeightCm)

	profile.MotherHeightCm = 260
	profile.FatherHeightCm = 270
	record, err = engine.Predict(context.Background(), &profile, nil, nil)
	require.NoError(t, err)
	require.Equal(t, domain.MaxPredictedHeightCm, record.PredictedHeightCm)
}

func TestPredictMonotonicAcrossSeries(t *testing.T) {
	engine := newTestEngine(nil)
	profile := testProfile()

	var previous *domain.PredictionRecord
	heights := []int{150, 160, 140, 181, 179}
	for _, h := range heights {
		m := &domain.Measurement{HeightCm: h}
		record, err := engine.Predict(context.Background(), &profile, m, previous)
		require.NoError(t, err)
		if previous != nil {
			require.GreaterOrEqual(t, record.PredictedHeightCm, previous.PredictedHeightCm)
		}
		require.GreaterOrEqual(t, record.PredictedHeightCm, h)
		require.LessOrEqual(t, record.PredictedHeightCm, domain.MaxPredictedHeightCm)
		r := record
		previous = &r
	}
}

func TestPredictMissingProfile(t *testing.T) {
	_, err := newTestEngine(nil).Predict(context.Background(), nil, nil, nil)
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestUserPromptCarriesInput(t *testing.T) {
	profile := testProfile()
	in := NewInput(profile, &domain.Measurement{HeightCm: 150, RecordedAt: time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC)})
	prompt, err := UserPrompt(in)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(prompt, "Input JSON:\n"))
	require.Contains(t, prompt, `"latestHeightCm":150`)
	require.Contains(t, prompt, `"latestHeightRecordedAt":"2026-01-05T09:30:00Z"`)
	require.Contains(t, prompt, `"dateOfBirth":"2010-04-03"`)
}
