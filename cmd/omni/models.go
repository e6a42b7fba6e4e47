package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newModelsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the providers and models the backend accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd.Context(), v, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runModels(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	catalog, err := newClient(cfg, logger).Models(ctx)
	if err != nil {
		return err
	}
	for _, p := range catalog.Providers {
		var models []string
		for _, m := range catalog.Models[p] {
			if p == catalog.DefaultProvider && m == catalog.DefaultModel {
				m += " (default)"
			}
			models = append(models, m)
		}
		marker := "  "
		if p == catalog.DefaultProvider {
			marker = "* "
		}
		fmt.Fprintf(stdout, "%s%s: %s\n", marker, p, strings.Join(models, ", "))
	}
	return nil
}
