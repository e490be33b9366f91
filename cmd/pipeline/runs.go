package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/database"
	"github.com/synaptica-ai/hospital-insights/pkg/pipeline"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recorded pipeline runs, or one run with its training jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return err
		}
		defer database.ClosePostgres()

		ctx := cmd.Context()
		runs := pipeline.NewRepository(db)
		if len(args) == 0 {
			recent, err := runs.Recent(ctx, runsLimit)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, recent)
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		run, err := runs.Get(ctx, id)
		if err != nil {
			return err
		}
		jobs, err := training.NewRepository(db).ListByRun(ctx, run.ID.String())
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, map[string]interface{}{
			"run":  run,
			"jobs": jobs,
		})
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
