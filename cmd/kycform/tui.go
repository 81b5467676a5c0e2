package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/kycform/internal/application"
	"github.com/gabrielmiguelok/kycform/internal/tui"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Fill in the form in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, _ := cmd.Flags().GetDuration("delay")
			if delay < 0 {
				return fmt.Errorf("--delay must not be negative, got %s", delay)
			}
			return tui.Run(cmd.Context(), application.NewSimulatedSubmitter(delay))
		},
	}
	cmd.Flags().Duration("delay", application.DefaultSubmitDelay, "Simulated submission latency")
	return cmd
}
