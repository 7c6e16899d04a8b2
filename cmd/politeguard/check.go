package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/politeguard/pkg/politeguard"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the model and report readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := politeguard.EnsureReady(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", politeguard.ReadyState())
			return err
		},
	}
}
