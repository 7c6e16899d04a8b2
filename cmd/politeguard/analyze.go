package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/politeguard/internal/config"
	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/output"
	"github.com/crimson-sun/politeguard/internal/output/async"
	"github.com/crimson-sun/politeguard/internal/output/file"
	"github.com/crimson-sun/politeguard/internal/output/multi"
	"github.com/crimson-sun/politeguard/internal/output/stdout"
	"github.com/crimson-sun/politeguard/internal/output/webhook"
	"github.com/crimson-sun/politeguard/internal/pipeline"
	"github.com/crimson-sun/politeguard/pkg/politeguard"
)

const (
	maxOutputFileSize = 100 * 1024 * 1024
	runIDHeader       = "X-Politeguard-Run"
)

func (a *app) newAnalyzeCmd() *cobra.Command {
	var (
		workers int
		outFile string
		hookURL string
		pretty  bool
		redact  bool
		dedupOn bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Classify each argument, or each line of stdin",
		Long: `Classify text and write one JSON record per input:

  {"index":0,"text":"...","level":"Polite","description":"...","inference_ms":12}

With no arguments every stdin line is one input. Records are written in
input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("workers") {
				a.cfg.Output.Workers = workers
			}
			if flags.Changed("output") {
				a.cfg.Output.File = outFile
			}
			if flags.Changed("webhook") {
				a.cfg.Output.WebhookURL = hookURL
			}
			if flags.Changed("pretty") {
				a.cfg.Output.Pretty = pretty
			}
			if flags.Changed("redact") {
				a.cfg.Output.Redact = redact
			}
			if flags.Changed("format") {
				a.cfg.Output.Format = format
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			texts := args
			if len(texts) == 0 {
				var err error
				if texts, err = pipeline.ReadLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return a.runAnalyze(cmd.Context(), texts, dedupOn)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent analyses")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "append records to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "ndjson", "file encoding: ndjson or cbor")
	cmd.Flags().StringVar(&hookURL, "webhook", "", "also POST records to this URL")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent stdout JSON")
	cmd.Flags().BoolVar(&redact, "redact", false, "omit the analyzed text from records")
	cmd.Flags().BoolVar(&dedupOn, "dedup", false, "analyze repeated texts only once")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, texts []string, dedupOn bool) error {
	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	out, err := buildOutput(a.cfg.Output, runID)
	if err != nil {
		return err
	}
	return a.analyzeTo(ctx, log, out, texts, dedupOn)
}

// analyzeTo runs the batch into out and always closes out.
func (a *app) analyzeTo(ctx context.Context, log *slog.Logger, out output.Output, texts []string, dedupOn bool) error {
	an, err := politeguard.New(ctx)
	if err != nil {
		return errors.Join(err, out.Close())
	}
	defer an.Close()

	var opts []pipeline.Option
	if dedupOn {
		opts = append(opts, pipeline.WithDedup())
	}
	p := pipeline.New(recordFunc(an), out, a.cfg.Output.Workers, opts...)
	sum, runErr := p.Run(ctx, texts)
	closeErr := p.Close()
	if runErr != nil {
		return errors.Join(runErr, closeErr)
	}

	log.Info("analysis complete",
		"total", sum.Total,
		"duplicates", sum.Duplicates,
		"polite", sum.ByLevel[model.Polite],
		"somewhat_polite", sum.ByLevel[model.SomewhatPolite],
		"neutral", sum.ByLevel[model.Neutral],
		"impolite", sum.ByLevel[model.Impolite],
	)
	return closeErr
}

// recordFunc adapts an analyzer to the pipeline.
func recordFunc(an textAnalyzer) pipeline.AnalyzeFunc {
	return func(ctx context.Context, text string) (model.Record, error) {
		resp, err := an.Analyze(ctx, text)
		if err != nil {
			return model.Record{}, err
		}
		return model.Record{
			Level:       resp.Level,
			Description: resp.Description,
			InferenceMs: resp.InferenceTimeMs(),
		}, nil
	}
}

// buildOutput picks stdout or a rotated file, plus an optional webhook
// behind an async queue. Webhook batches carry runID in a header so the
// receiver can group them.
func buildOutput(cfg config.OutputConfig, runID string) (output.Output, error) {
	var outs []output.Output
	if cfg.File != "" {
		format, err := file.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		opts := []file.Option{file.WithMaxSize(maxOutputFileSize), file.WithFormat(format)}
		if cfg.Redact {
			opts = append(opts, file.WithRedact())
		}
		f, err := file.New(cfg.File, opts...)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		outs = append(outs, f)
	} else {
		outs = append(outs, stdout.New(cfg.Pretty, cfg.Redact))
	}

	if cfg.WebhookURL != "" {
		opts := []webhook.Option{webhook.WithHeaders(map[string]string{runIDHeader: runID})}
		if cfg.Redact {
			opts = append(opts, webhook.WithRedact())
		}
		outs = append(outs, async.New(webhook.New(cfg.WebhookURL, opts...)))
	}

	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
