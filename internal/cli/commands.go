package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/growth/internal/auth"
	"example.com/growth/internal/config"
	"example.com/growth/internal/domain"
	"example.com/growth/internal/engine"
	"example.com/growth/internal/fingerprint"
	"example.com/growth/internal/inference"
	"example.com/growth/internal/persistence/memory"
	"example.com/growth/internal/prediction"
	"example.com/growth/internal/routine"
)

func newFingerprintCommand(opts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "fingerprint <profile.yaml>",
		Short: "Print the generation fingerprints of a profile",
		Long: `Fingerprint predicts from the profile and prints the idempotency fingerprints the
service would store for that prediction and for a routine generated from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseMode(mode)
			if err != nil {
				return err
			}
			svc, profile, err := opts.pipeline(cmd, args[0])
			if err != nil {
				return err
			}
			record, _, err := svc.Predict(cmd.Context(), profile.UserID)
			if err != nil {
				return err
			}
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			routineFP, err := fingerprint.Of(routine.NewInput(profile, record, status, catalog.Version()))
			if err != nil {
				return err
			}

			result := map[string]string{"prediction": record.Fingerprint, "routine": routineFP}
			return write(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
				fmt.Fprintf(w, "prediction %s\nroutine    %s\n", record.Fingerprint, routineFP)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.RoutineActive), "routine mode (active|recovery)")
	return cmd
}

func newPredictCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <profile.yaml>",
		Short: "Predict adult height for a profile",
		Long: `Predict replays every measurement in the profile in order, so the result
reflects the same monotonic ratchet the service applies to a user's history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, profile, err := opts.pipeline(cmd, args[0])
			if err != nil {
				return err
			}
			record, _, err := svc.Predict(cmd.Context(), profile.UserID)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.Format, predictionJSON(*record), func(w io.Writer) {
				fmt.Fprintf(w, "predicted height   %d cm\n", record.PredictedHeightCm)
				fmt.Fprintf(w, "percentile         %d\n", record.Percentile)
				fmt.Fprintf(w, "dream height odds  %d%%\n", record.DreamHeightOdds)
				fmt.Fprintf(w, "growth completion  %d%%\n", record.GrowthCompletionPercent)
				fmt.Fprintf(w, "source             %s\n", record.Source)
			})
		},
	}
}

func newPlanCommand(opts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "plan <profile.yaml>",
		Short: "Generate a 15-day routine for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseMode(mode)
			if err != nil {
				return err
			}
			svc, profile, err := opts.pipeline(cmd, args[0])
			if err != nil {
				return err
			}
			if _, _, err := svc.Predict(cmd.Context(), profile.UserID); err != nil {
				return err
			}
			plan, _, err := svc.GenerateRoutine(cmd.Context(), profile.UserID, status)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.Format, planJSON(*plan), func(w io.Writer) {
				io.WriteString(w, routine.Render(plan.Days))
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.RoutineActive), "routine mode (active|recovery)")
	return cmd
}

func newCatalogCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Validate and list the routine catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			grouped := make(map[domain.Category][]routine.Item, len(routine.Categories))
			for _, category := range routine.Categories {
				grouped[category] = catalog.Items(category)
			}
			result := map[string]any{"version": catalog.Version(), "items": grouped}
			return write(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
				fmt.Fprintf(w, "catalog %s\n", catalog.Version())
				for _, category := range routine.Categories {
					for _, item := range grouped[category] {
						fmt.Fprintf(w, "%-8s | %-24s | %-9s | weight=%d\n", category, item.Name, item.TaskType, item.Weight)
					}
				}
			})
		},
	}
}

func newTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg := config.Load()
			token, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, scopes, ttl)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.Format, map[string]string{"token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id placed in the sub claim")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeGrowthRead, auth.ScopeGrowthWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

// pipeline seeds an in-memory store from the profile file and returns a Service over it.
// Measurements are replayed one at a time so every intermediate prediction is recorded.
func (o *RootOptions) pipeline(cmd *cobra.Command, path string) (*engine.Service, domain.ProfileSnapshot, error) {
	profile, measurements, err := LoadProfile(path)
	if err != nil {
		return nil, domain.ProfileSnapshot{}, err
	}
	catalog, err := o.catalog()
	if err != nil {
		return nil, domain.ProfileSnapshot{}, err
	}

	gateway := inference.FromConfig(o.inference(), inference.WithLogger(o.logger(cmd, "[inference] ")))
	store := memory.NewStore()
	store.PutProfile(profile)
	svc := engine.NewService(store, store,
		prediction.NewEngine(gateway, prediction.WithLogger(o.logger(cmd, "[prediction] "))),
		routine.NewEngine(gateway, routine.WithCatalog(catalog), routine.WithLogger(o.logger(cmd, "[routine] "))),
		engine.WithLocker(store),
		engine.WithLogger(o.logger(cmd, "[engine] ")),
	)

	for i, m := range measurements {
		store.AddMeasurement(m)
		if i == len(measurements)-1 {
			break
		}
		if _, _, err := svc.Predict(cmd.Context(), profile.UserID); err != nil {
			return nil, domain.ProfileSnapshot{}, err
		}
	}
	return svc, profile, nil
}

func parseMode(raw string) (domain.RoutineStatus, error) {
	mode := domain.RoutineStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", engine.ErrInvalidMode, raw)
	}
	return mode, nil
}

func write(w io.Writer, format string, data any, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}

type predictionOutput struct {
	PredictedHeightCm       int    `json:"predicted_height_cm"`
	Percentile              int    `json:"percentile"`
	DreamHeightOdds         int    `json:"dream_height_odds"`
	GrowthCompletionPercent int    `json:"growth_completion_percent"`
	Source                  string `json:"source"`
	Fingerprint             string `json:"fingerprint"`
}

func predictionJSON(rec domain.PredictionRecord) predictionOutput {
	return predictionOutput{
		PredictedHeightCm:       rec.PredictedHeightCm,
		Percentile:              rec.Percentile,
		DreamHeightOdds:         rec.DreamHeightOdds,
		GrowthCompletionPercent: rec.GrowthCompletionPercent,
		Source:                  string(rec.Source),
		Fingerprint:             rec.Fingerprint,
	}
}

type taskOutput struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Type            string `json:"type"`
	Reps            *int   `json:"reps,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

type dayOutput struct {
	Day   int          `json:"day"`
	Tasks []taskOutput `json:"tasks"`
}

type planOutput struct {
	Status string      `json:"status"`
	Source string      `json:"source"`
	Days   []dayOutput `json:"days"`
}

func planJSON(plan domain.RoutinePlan) planOutput {
	out := planOutput{Status: string(plan.Status), Source: string(plan.Source)}
	for _, day := range plan.Days {
		d := dayOutput{Day: day.DayIndex}
		for _, task := range day.Tasks {
			d.Tasks = append(d.Tasks, taskOutput{
				Name: task.Name, Category: string(task.Category), Type: string(task.TaskType),
				Reps: task.Reps, DurationMinutes: task.DurationMinutes,
			})
		}
		out.Days = append(out.Days, d)
	}
	return out
}
