package main

import (
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aircheck/internal/config"
	"aircheck/internal/ipc"
	"aircheck/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and station status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}

			statusResp := &ipc.StatusResponse{}
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
					statusResp = resp
				}
				_ = client.Close()
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range systemStatusLines(cfg, statusResp) {
				fmt.Fprintln(stdout, renderStatusLine(line.label, line.kind, line.detail, colorize))
			}
			fmt.Fprintln(stdout)

			if len(statusResp.Breakers) > 0 {
				for _, line := range renderSectionHeader("Providers", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range breakerLines(statusResp.Breakers) {
					fmt.Fprintln(stdout, renderStatusLine(line.label, line.kind, line.detail, colorize))
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Stations", colorize) {
				fmt.Fprintln(stdout, line)
			}

			rows, err := stationRows(cmd, cfg, statusResp)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No stations registered")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Name", "State", "Last Chunk", "Errors"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

type statusLine struct {
	label  string
	kind   statusKind
	detail string
}

func systemStatusLines(cfg *config.Config, status *ipc.StatusResponse) []statusLine {
	lines := make([]statusLine, 0, 6)
	if status.Running {
		lines = append(lines, statusLine{"Aircheck", statusOK, fmt.Sprintf("Running (pid %d)", status.PID)})
	} else {
		lines = append(lines, statusLine{"Aircheck", statusWarn, "Not running (run `aircheck daemon start`)"})
	}

	lines = append(lines, binaryStatusLine("ffmpeg", cfg.FFmpegBinary()))
	lines = append(lines, binaryStatusLine("fpcalc", cfg.FpcalcBinary()))

	if strings.TrimSpace(cfg.AcoustID.APIKey) != "" {
		lines = append(lines, statusLine{"AcoustID", statusOK, "API key configured"})
	} else {
		lines = append(lines, statusLine{"AcoustID", statusWarn, "API key missing (acoustic lookup disabled)"})
	}
	if strings.TrimSpace(cfg.AudD.APIKey) != "" {
		lines = append(lines, statusLine{"AudD", statusOK, "API key configured"})
	} else {
		lines = append(lines, statusLine{"AudD", statusWarn, "API key missing (content recognition disabled)"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, statusLine{"Notifications", statusOK, "Configured"})
	} else {
		lines = append(lines, statusLine{"Notifications", statusInfo, "Not configured"})
	}
	return lines
}

func binaryStatusLine(label, binary string) statusLine {
	if _, err := exec.LookPath(binary); err != nil {
		return statusLine{label, statusError, fmt.Sprintf("Not found (command: %s)", binary)}
	}
	return statusLine{label, statusOK, fmt.Sprintf("Ready (command: %s)", binary)}
}

func breakerLines(breakers map[string]string) []statusLine {
	names := make([]string, 0, len(breakers))
	for name := range breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]statusLine, 0, len(names))
	for _, name := range names {
		state := breakers[name]
		kind := statusOK
		switch state {
		case "open":
			kind = statusError
		case "half-open":
			kind = statusWarn
		}
		lines = append(lines, statusLine{name, kind, "Circuit " + state})
	}
	return lines
}

func stationRows(cmd *cobra.Command, cfg *config.Config, status *ipc.StatusResponse) ([][]string, error) {
	if status.Running {
		rows := make([][]string, 0, len(status.Stations))
		for _, station := range status.Stations {
			lastChunk := "never"
			if !station.LastChunk.IsZero() {
				lastChunk = formatAge(time.Since(station.LastChunk))
			}
			rows = append(rows, []string{
				strconv.FormatInt(station.ID, 10),
				station.Name,
				station.State,
				lastChunk,
				strconv.Itoa(station.ConsecutiveErrors),
			})
		}
		return rows, nil
	}

	// Daemon offline: read registered stations straight from the database.
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open station database: %w", err)
	}
	defer s.Close()

	stations, err := s.ListStations(cmd.Context())
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(stations))
	for _, station := range stations {
		rows = append(rows, []string{
			strconv.FormatInt(station.ID, 10),
			station.Name,
			string(station.Status),
			"daemon offline",
			"-",
		})
	}
	return rows, nil
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%.1fh ago", age.Hours())
	}
}
