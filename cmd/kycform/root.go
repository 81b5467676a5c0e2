package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/kycform/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kycform",
		Short:         "KYC application intake form",
		Long:          "kycform collects personal and financial details in two validated steps and submits them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (default: ./kycform.yaml if present)")

	root.AddCommand(newServeCmd(), newTUICmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kycform version %s\n", version)
		},
	}
}

// loadConfig reads the configuration named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
