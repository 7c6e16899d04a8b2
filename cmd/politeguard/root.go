package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/politeguard/internal/config"
	"github.com/crimson-sun/politeguard/internal/logging"
	"github.com/crimson-sun/politeguard/pkg/politeguard"
)

// textAnalyzer is the part of *politeguard.Analyzer the commands use.
type textAnalyzer interface {
	Analyze(ctx context.Context, text string) (politeguard.Response, error)
}

// app carries state shared by the subcommands.
type app struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "politeguard",
		Short: "Classify the politeness of text with a local ONNX model",
		Long: `politeguard scores text as Polite, SomewhatPolite, Neutral or Impolite
using a fine-tuned BERT classifier run through ONNX Runtime.

Commands:
  politeguard analyze "Thanks for the quick reply!"   # classify arguments
  cat messages.txt | politeguard analyze              # classify stdin lines
  politeguard check                                   # load the model and report readiness
  politeguard selftest                                # run the reference sentences`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			// analyze owns stdout for NDJSON, so its logs are JSON too.
			logging.Init(cmd.Name() == "analyze", logging.ParseLevel(cfg.Log.Level))
			return nil
		},
	}

	root.AddCommand(
		a.newAnalyzeCmd(),
		a.newCheckCmd(),
		a.newSelftestCmd(),
	)
	return root
}
