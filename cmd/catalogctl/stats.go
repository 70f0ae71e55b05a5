package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/spf13/cobra"
)

const histogramWidth = 50

func newStatsCmd(load catalogLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the difficulty histogram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := load()
			if err != nil {
				return err
			}
			hist := cat.DifficultyHistogram()
			buckets := make([]int, 0, len(hist))
			peak := 0
			for b, n := range hist {
				buckets = append(buckets, b)
				peak = max(peak, n)
			}
			sort.Ints(buckets)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Problems: %d  Topics: %d\n", cat.Len(), len(cat.Topics()))
			for _, b := range buckets {
				n := hist[b]
				bar := strings.Repeat("#", max(1, n*histogramWidth/max(peak, 1)))
				fmt.Fprintf(out, "%3d-%-3d %6d %s\n", b, b+catalog.BucketWidth-1, n, bar)
			}
			return nil
		},
	}
}
