package main

import (
	"fmt"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/spf13/cobra"
)

func newSelectCmd(load catalogLoader) *cobra.Command {
	var (
		difficulty int
		count      int
		weak       []string
		seed       int64
		tolerance  int
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Dry-run a contest selection",
		Example: `  catalogctl select --difficulty 30 --count 5
  catalogctl select --difficulty 45 --weak dp_general --weak graph_traversal --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if difficulty < 1 || difficulty > 100 {
				return fmt.Errorf("--difficulty must be between 1 and 100")
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive")
			}
			cat, err := load()
			if err != nil {
				return err
			}

			sel := catalog.NewSelector(cat, catalog.WithSeed(seed), catalog.WithTolerance(tolerance))
			picks := sel.Select(catalog.SelectRequest{
				TargetDifficulty:  difficulty,
				Count:             count,
				WeakTopics:        weak,
				IncludeWeakTopics: len(weak) > 0,
			})

			out := cmd.OutOrStdout()
			for i, p := range picks {
				marker := ""
				if p.IsWeakTopicProblem {
					marker = " [weak]"
				}
				fmt.Fprintf(out, "%2d. %-12s d=%-3d target=%-3d %-24s %s%s\n",
					i+1, p.Problem.ID, p.Problem.Difficulty, p.TargetDifficulty, p.Topic, p.Problem.Name, marker)
			}
			if len(picks) < count {
				fmt.Fprintf(out, "shortfall: found %d, needed %d\n", len(picks), count)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&difficulty, "difficulty", "d", 30, "target difficulty (1-100)")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of problems")
	cmd.Flags().StringArrayVar(&weak, "weak", nil, "weak topic to reserve a slot for (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "selector seed, 0 for a clock seed")
	cmd.Flags().IntVar(&tolerance, "tolerance", catalog.DefaultTolerance, "difficulty tolerance")
	return cmd
}
