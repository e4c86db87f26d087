package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/growth/internal/domain"
)

// ProfileFile is the YAML document read by growthctl.
type ProfileFile struct {
	UserID            string  `yaml:"user_id"`
	Gender            string  `yaml:"gender"`
	Ethnicity         string  `yaml:"ethnicity"`
	WorkoutCapacity   string  `yaml:"workout_capacity"`
	DateOfBirth       string  `yaml:"date_of_birth"`
	MotherHeightCm    int     `yaml:"mother_height_cm"`
	FatherHeightCm    int     `yaml:"father_height_cm"`
	FootSizeCm        int     `yaml:"foot_size_cm"`
	AverageSleepHours float64 `yaml:"average_sleep_hours"`
	DreamHeightCm     int     `yaml:"dream_height_cm"`
	Measurements      []struct {
		HeightCm   int       `yaml:"height_cm"`
		RecordedAt time.Time `yaml:"recorded_at"`
	} `yaml:"measurements"`
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (domain.ProfileSnapshot, []domain.Measurement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ProfileSnapshot{}, nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile document. Unknown keys are rejected.
func ParseProfile(data []byte) (domain.ProfileSnapshot, []domain.Measurement, error) {
	var file ProfileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return domain.ProfileSnapshot{}, nil, fmt.Errorf("parse profile: %w", err)
	}

	if strings.TrimSpace(file.UserID) == "" {
		file.UserID = "local"
	}
	dob, err := time.Parse("2006-01-02", file.DateOfBirth)
	if err != nil {
		return domain.ProfileSnapshot{}, nil, fmt.Errorf("parse profile: date_of_birth must be YYYY-MM-DD: %w", err)
	}
	if file.MotherHeightCm <= 0 || file.FatherHeightCm <= 0 || file.DreamHeightCm <= 0 {
		return domain.ProfileSnapshot{}, nil, errors.New("parse profile: parent and dream heights are required")
	}

	profile := domain.ProfileSnapshot{
		UserID:            file.UserID,
		Gender:            strings.ToLower(strings.TrimSpace(file.Gender)),
		Ethnicity:         file.Ethnicity,
		WorkoutCapacity:   file.WorkoutCapacity,
		DateOfBirth:       dob,
		MotherHeightCm:    file.MotherHeightCm,
		FatherHeightCm:    file.FatherHeightCm,
		FootSizeCm:        file.FootSizeCm,
		AverageSleepHours: file.AverageSleepHours,
		DreamHeightCm:     file.DreamHeightCm,
	}

	measurements := make([]domain.Measurement, 0, len(file.Measurements))
	for i, m := range file.Measurements {
		if m.HeightCm <= 0 || m.RecordedAt.IsZero() {
			return domain.ProfileSnapshot{}, nil, fmt.Errorf("parse profile: measurement %d needs height_cm and recorded_at", i+1)
		}
		measurements = append(measurements, domain.Measurement{
			ID:         fmt.Sprintf("m%d", i+1),
			UserID:     file.UserID,
			HeightCm:   m.HeightCm,
			RecordedAt: m.RecordedAt.UTC(),
		})
	}
	return profile, measurements, nil
}
