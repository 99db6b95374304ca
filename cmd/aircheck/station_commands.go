package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"aircheck/internal/ipc"
)

func newStationCommand(ctx *commandContext) *cobra.Command {
	stationCmd := &cobra.Command{
		Use:   "station",
		Short: "Manage monitored stations",
	}

	stationCmd.AddCommand(newStationAddCommand(ctx))
	stationCmd.AddCommand(newStationListCommand(ctx))
	stationCmd.AddCommand(newStationRemoveCommand(ctx))
	stationCmd.AddCommand(newStationRestartCommand(ctx))

	return stationCmd
}

func newStationAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <stream-url>",
		Short: "Register a station for monitoring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StationAdd(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added station %d (%s)\n", resp.ID, resp.Name)
				return nil
			})
		},
	}
}

func newStationListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered stations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StationList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Stations) == 0 {
					fmt.Fprintln(stdout, "No stations registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Stations))
				for _, station := range resp.Stations {
					lastChecked := "never"
					if station.LastChecked != nil {
						lastChecked = station.LastChecked.Local().Format("2006-01-02 15:04:05")
					}
					rows = append(rows, []string{
						strconv.FormatInt(station.ID, 10),
						station.Name,
						station.Status,
						lastChecked,
						station.StreamURL,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Name", "Status", "Last Checked", "Stream URL"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newStationRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a station and stop its worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStationID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StationRemove(id)
				if err != nil {
					return err
				}
				if !resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Station %d not found\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed station %d\n", id)
				return nil
			})
		},
	}
}

func newStationRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Restart a station's ingest worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStationID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StationRestart(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restarted station %d\n", id)
				return nil
			})
		},
	}
}

func parseStationID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid station id %q", value)
	}
	return id, nil
}
