package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"aircheck/internal/ipc"
)

func newDetectionsCommand(ctx *commandContext) *cobra.Command {
	var stationID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "detections",
		Short: "Show recent finalized detections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Detections(stationID, limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Detections) == 0 {
					fmt.Fprintln(stdout, "No detections recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(resp.Detections))
				for _, det := range resp.Detections {
					rows = append(rows, []string{
						det.DetectedAt.Local().Format("2006-01-02 15:04:05"),
						strconv.FormatInt(det.StationID, 10),
						det.Title,
						det.Artist,
						fmt.Sprintf("%ds", int(det.Duration)),
						fmt.Sprintf("%.2f", det.Confidence),
						det.Method,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Detected", "Station", "Title", "Artist", "Duration", "Confidence", "Method"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&stationID, "station", 0, "Restrict to one station ID (0 for all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of detections to show")
	return cmd
}
