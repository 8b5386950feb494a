package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"britearchive/internal/app"
	"britearchive/internal/config"
)

var errRunFailed = errors.New("run finished with failures")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one archive pass over the configured data sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := app.Open(cfg)
		if err != nil {
			return err //nolint:wrapcheck
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("close ledger")
			}
		}()

		res, err := a.Execute(cmd.Context(), uuid.NewString(), cfg.LogFileDirectory)
		if err != nil {
			return err //nolint:wrapcheck
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inputs=%d successes=%d failures=%d skipped=%d report=%s\n",
			res.Summary.Inputs, res.Summary.Successes, res.Summary.Failures, res.Summary.Skipped, res.ReportPath)
		if !res.Succeeded() {
			return errRunFailed
		}
		return nil
	},
}
