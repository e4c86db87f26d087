// Package cli implements growthctl, an offline tool for running the prediction and routine
// pipelines against a profile file and for minting development tokens.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"example.com/growth/internal/config"
	"example.com/growth/internal/routine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	CatalogFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for growthctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "growthctl",
		Short: "growthctl runs growth predictions and routines offline",
		Long: `growthctl loads a YAML profile and runs the same prediction and routine pipelines
as the growth service, against an in-memory store. Inference is used when
OPENAI_API_KEY is set; otherwise every result comes from the deterministic fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log pipeline diagnostics to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.CatalogFile, "catalog", "", "routine catalog YAML (defaults to the embedded catalog)")

	cmd.AddCommand(newFingerprintCommand(opts))
	cmd.AddCommand(newPredictCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// logger writes diagnostics to stderr in verbose mode and discards them otherwise.
func (o *RootOptions) logger(cmd *cobra.Command, prefix string) *log.Logger {
	var w io.Writer = io.Discard
	if o.Verbose {
		w = cmd.ErrOrStderr()
	}
	return log.New(w, prefix, 0)
}

func (o *RootOptions) catalog() (*routine.Catalog, error) {
	if o.CatalogFile == "" {
		return routine.DefaultCatalog(), nil
	}
	data, err := os.ReadFile(o.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return routine.ParseCatalog(data)
}

func (o *RootOptions) inference() config.InferenceConfig {
	return config.Load().Inference
}
