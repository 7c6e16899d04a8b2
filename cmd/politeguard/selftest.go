package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/politeguard/pkg/politeguard"
)

type selftestCase struct {
	text string
	want politeguard.Level
}

var selftestCases = []selftestCase{
	{"Thank you so much for your help!", politeguard.Polite},
	{"I appreciate your patience on this matter. If you could provide those details when you get a chance, that would be helpful.", politeguard.SomewhatPolite},
	{"The meeting has been rescheduled to 3 PM tomorrow. Please update your calendar accordingly.", politeguard.Neutral},
	{"You clearly have no idea what you're talking about. Maybe you should educate yourself before wasting everyone's time with such ignorant questions.", politeguard.Impolite},
}

func (a *app) newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Classify the reference sentences and compare with their expected levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			fmt.Fprintln(w, "Initializing analyzer...")
			an, err := politeguard.New(ctx)
			if err != nil {
				return err
			}
			defer an.Close()

			failed, err := runSelftest(ctx, w, an, selftestCases)
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("selftest: %d of %d cases failed", failed, len(selftestCases))
			}
			return nil
		},
	}
}

// runSelftest prints one block per case and a summary, and returns how many
// cases got an unexpected level.
func runSelftest(ctx context.Context, w io.Writer, an textAnalyzer, cases []selftestCase) (int, error) {
	failed := 0
	for i, tc := range cases {
		resp, err := an.Analyze(ctx, tc.text)
		if err != nil {
			return failed, fmt.Errorf("selftest case %d: %w", i+1, err)
		}

		status := "PASS"
		if resp.Level != tc.want {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "Test %d: %q\n", i+1, tc.text)
		fmt.Fprintf(w, "  expected:    %s\n", tc.want)
		fmt.Fprintf(w, "  actual:      %s\n", resp.Level)
		fmt.Fprintf(w, "  description: %s\n", resp.Description)
		fmt.Fprintf(w, "  inference:   %dms\n", resp.InferenceTimeMs())
		fmt.Fprintf(w, "  %s\n\n", status)
	}

	fmt.Fprintf(w, "Total: %d  Passed: %d  Failed: %d\n", len(cases), len(cases)-failed, failed)
	return failed, nil
}
