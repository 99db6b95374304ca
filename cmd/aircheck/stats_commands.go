package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"aircheck/internal/ipc"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Airplay statistics",
	}

	statsCmd.AddCommand(newStatsTopCommand(ctx))

	return statsCmd
}

func newStatsTopCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most-played tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StatsTop(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Tracks) == 0 {
					fmt.Fprintln(stdout, "No plays recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(resp.Tracks))
				for i, track := range resp.Tracks {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						track.Title,
						track.Artist,
						strconv.FormatInt(track.PlayCount, 10),
						formatAirtime(track.TotalSeconds),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"#", "Title", "Artist", "Plays", "Airtime"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of tracks to show")
	return cmd
}

func formatAirtime(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm%02ds", minutes, total%60)
}
