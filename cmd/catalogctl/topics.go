package main

import (
	"fmt"
	"sort"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/spf13/cobra"
)

func newTopicsCmd(load catalogLoader) *cobra.Command {
	var byCount bool

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics with their problem counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			counts := cat.TopicCounts()
			topics := cat.Topics()
			if byCount {
				sort.SliceStable(topics, func(i, j int) bool { return counts[topics[i]] > counts[topics[j]] })
			}

			out := cmd.OutOrStdout()
			for _, t := range topics {
				fmt.Fprintf(out, "%-32s %-32s %5d\n", t, utils.HumanizeTopic(t), counts[t])
			}
			fmt.Fprintf(out, "%d topics, %d problems\n", len(topics), cat.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&byCount, "by-count", false, "sort by problem count, largest first")
	return cmd
}
