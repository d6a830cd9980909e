package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Metta-AI/wandb-carbs/internal/sweepfile"
	"github.com/Metta-AI/wandb-carbs/pkg/sweeper"
	"github.com/Metta-AI/wandb-carbs/pkg/wandb"
)

var (
	configPath string
	entity     string
	project    string
	sweepName  string
	baseURL    string
	apiKey     string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wandb-carbs",
		Short: "CARBS-backed WandB sweep tooling",
		Long: `Tooling for running CARBS (cost-aware Bayesian search) through WandB sweeps.

Each WandB run in the sweep is one trial: the sweeper suggests parameters,
records them in the run config, and stores the observed objective and cost in
the run summary for later sweep members to learn from.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	createCmd := &cobra.Command{
		Use:   "create-sweep",
		Short: "Create a WandB sweep from a CARBS parameter file",
		Example: `  wandb-carbs create-sweep --config sweep.yaml --entity my-team --project my-project
  wandb-carbs create-sweep --config sweep.yaml --entity my-team --project my-project --name lr-search`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateSweep()
		},
	}
	createCmd.Flags().StringVar(&configPath, "config", "", "path to the sweep parameter file (required)")
	createCmd.Flags().StringVar(&entity, "entity", "", "WandB entity (required)")
	createCmd.Flags().StringVar(&project, "project", "", "WandB project (required)")
	createCmd.Flags().StringVar(&sweepName, "name", "", "sweep name (defaults to the name in the config file)")
	createCmd.Flags().StringVar(&baseURL, "base-url", "", "WandB API base URL (defaults to $WANDB_BASE_URL)")
	createCmd.Flags().StringVar(&apiKey, "api-key", "", "WandB API key (defaults to $WANDB_API_KEY)")
	createCmd.MarkFlagRequired("config")
	createCmd.MarkFlagRequired("entity")
	createCmd.MarkFlagRequired("project")

	rootCmd.AddCommand(createCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runCreateSweep() error {
	def, err := sweepfile.Load(configPath)
	if err != nil {
		return err
	}

	name := sweepName
	if name == "" {
		name = def.Name
	}
	if name == "" {
		return fmt.Errorf("no sweep name given: pass --name or set name in the config file")
	}

	key := apiKey
	if key == "" {
		key = os.Getenv("WANDB_API_KEY")
	}
	if key == "" {
		return fmt.Errorf("no API key given: pass --api-key or set WANDB_API_KEY")
	}
	url := baseURL
	if url == "" {
		url = os.Getenv("WANDB_BASE_URL")
	}

	client := wandb.NewClient(wandb.NewConfig(
		wandb.WithBaseURL(url),
		wandb.WithAPIKey(key),
	))

	sweepID, err := sweeper.CreateSweep(context.Background(), client, name, entity, project, def.Params)
	if err != nil {
		return err
	}

	log.Info().Msgf("created sweep %s with %d parameters", sweepID, len(def.Params))
	fmt.Println(sweepID)
	return nil
}
