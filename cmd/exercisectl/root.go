package main

import (
	"alcyxob/fitness-coach/internal/app"
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configDir string
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "exercisectl",
		Short: "Build and query the exercise retrieval index",
		Long: `exercisectl builds the vector index over the exercise catalog and runs
queries against it with the same configuration as the server.

Example:
  exercisectl index --force
  exercisectl search "胸部训练" --top 5
  exercisectl recommend --goal 增肌 --equipment dumbbell --difficulty beginner`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Missing .env files are fine.
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", ".", "directory containing config.yaml")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline for the command")

	cmd.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newRecommendCmd(opts),
	)
	return cmd
}

// withRetrieval loads configuration, builds the application and hands the
// ready retrieval service to fn.
func (o *rootOptions) withRetrieval(fn func(ctx context.Context, svc service.RetrievalService) error) error {
	cfg, err := config.LoadConfig(o.configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := app.ConfigureLogging(cfg.Log); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	svc, err := application.Retrieval.Get(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func printExercises(w io.Writer, exercises []domain.Exercise) {
	if len(exercises) == 0 {
		fmt.Fprintln(w, "No exercises found.")
		return
	}
	for i, ex := range exercises {
		fmt.Fprintf(w, "%2d. %s (%s)\n", i+1, ex.Name, ex.EnglishName)
		fmt.Fprintf(w, "    %s | %s | %s | %s\n", ex.Category, ex.Equipment, ex.Difficulty, strings.Join(ex.TargetMuscles, ", "))
	}
}
