package main

import (
	"os"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/spf13/cobra"
)

const defaultProblemsFile = "output/standardized_problems.json"

func newRootCmd() *cobra.Command {
	var problemsFile string

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Inspect the problem catalog",
		Long: `catalogctl loads the standardized problem catalog and reports
topic coverage, the difficulty spread, and dry-run contest selections.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	def := os.Getenv("PROBLEMS_FILE")
	if def == "" {
		def = defaultProblemsFile
	}
	root.PersistentFlags().StringVarP(&problemsFile, "file", "f", def, "path to the problems JSON (env PROBLEMS_FILE)")

	load := func() (*catalog.Catalog, error) {
		return catalog.Load(problemsFile)
	}
	root.AddCommand(newTopicsCmd(load), newStatsCmd(load), newSelectCmd(load))
	return root
}

type catalogLoader func() (*catalog.Catalog, error)
