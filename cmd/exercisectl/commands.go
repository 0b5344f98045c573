package main

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index if it is missing or stale",
		Long: `Build the vector index over the exercise catalog. An index that matches
the catalog and embedding model is left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRetrieval(func(ctx context.Context, svc service.RetrievalService) error {
				if force {
					if err := svc.Rebuild(ctx); err != nil {
						return fmt.Errorf("rebuild index: %w", err)
					}
				}
				stats, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Catalog:     %d exercises\n", stats.CatalogSize)
				fmt.Fprintf(out, "Index:       %d entries\n", stats.IndexSize)
				fmt.Fprintf(out, "Model:       %s\n", stats.Model)
				fmt.Fprintf(out, "Fingerprint: %s\n", stats.Fingerprint)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "drop and rebuild the index even if it is fresh")
	return cmd
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		top    int
		filter domain.ExerciseFilter
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over the exercise catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return root.withRetrieval(func(ctx context.Context, svc service.RetrievalService) error {
				scored, err := svc.SearchScored(ctx, query, top, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(scored) == 0 {
					fmt.Fprintln(out, "No exercises found.")
					return nil
				}
				for i, hit := range scored {
					fmt.Fprintf(out, "%2d. %s (%s)  distance=%.4f\n", i+1, hit.Exercise.Name, hit.Exercise.EnglishName, hit.Distance)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 5, "number of results")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only exercises of this category")
	cmd.Flags().StringVar(&filter.Equipment, "equipment", "", "only exercises using this equipment")
	cmd.Flags().StringVar(&filter.Difficulty, "difficulty", "", "only exercises of this difficulty")
	return cmd
}

func newRecommendCmd(root *rootOptions) *cobra.Command {
	var (
		goal, equipment, difficulty string
		n                           int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend exercises for a goal, equipment and difficulty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRetrieval(func(ctx context.Context, svc service.RetrievalService) error {
				exercises, err := svc.Recommend(ctx, goal, equipment, difficulty, n)
				if err != nil {
					return err
				}
				printExercises(cmd.OutOrStdout(), exercises)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "fitness goal, e.g. 增肌 or muscle_gain")
	cmd.Flags().StringVar(&equipment, "equipment", domain.DefaultEquipmentAccess, "available equipment; gym means unrestricted")
	cmd.Flags().StringVar(&difficulty, "difficulty", domain.DefaultExperienceLevel, "difficulty level")
	cmd.Flags().IntVar(&n, "n", 8, "number of results")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}
