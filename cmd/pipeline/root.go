package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-insights/pkg/pipeline"
)

var (
	configPath string
	workers    int
	skipTrain  bool
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Hospital analytics batch pipeline",
	Long: `pipeline cleans raw patient and visit extracts, rebuilds the star-schema
warehouse, and produces the feature sets and models used by serving.

Steps run in dependency order. Commands that skip the clean step read the
cleaned dataset from the processed data directory.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every step: clean, warehouse, features, train",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := []pipeline.Step{pipeline.StepClean, pipeline.StepWarehouse, pipeline.StepFeatures}
		return runSteps(cmd.Context(), append(steps, pipeline.StepTrain)...)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean raw extracts into the processed data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), pipeline.StepClean)
	},
}

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Rebuild the star schema from processed data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), pipeline.StepWarehouse)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build feature sets from processed data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), pipeline.StepFeatures)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train models from the stored feature sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), pipeline.StepTrain)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "pipeline YAML config (defaults to $PIPELINE_CONFIG)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "aggregation workers (overrides config)")
	runCmd.Flags().BoolVar(&skipTrain, "skip-train", false, "stop after the features step")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(warehouseCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(trainCmd)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func runSteps(ctx context.Context, steps ...pipeline.Step) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.AggregationWorkers = workers
	}
	if skipTrain || !cfg.TrainModels {
		steps = withoutStep(steps, pipeline.StepTrain, len(steps) > 1)
	}
	metrics.Init()

	deps, cleanup, err := wire(ctx, cfg, steps)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to wire pipeline")
		return err
	}
	defer cleanup()

	result, runErr := pipeline.NewRunner(deps).Run(ctx, steps...)
	if err := printJSON(os.Stdout, result); err != nil {
		return err
	}
	return runErr
}

// withoutStep drops step when the command runs other steps too; a command
// consisting only of step keeps it.
func withoutStep(steps []pipeline.Step, step pipeline.Step, drop bool) []pipeline.Step {
	if !drop {
		return steps
	}
	out := steps[:0:0]
	for _, s := range steps {
		if s != step {
			out = append(out, s)
		}
	}
	return out
}
