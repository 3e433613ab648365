package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/api"
	"github.com/t77yq/pulse/internal/service"
)

var (
	flagFile string
	flagJSON bool
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	criticalStyle = cellStyle.Bold(true)
	riskStyles    = map[string]lipgloss.Style{
		"High":   cellStyle.Foreground(lipgloss.Color("#DC2626")),
		"Medium": cellStyle.Foreground(lipgloss.Color("#CA8A04")),
		"Low":    cellStyle.Foreground(lipgloss.Color("#059669")),
	}
)

func calculateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate a project file offline",
		Long: `Calculate reads a project in the calculate-project request format and prints
the schedule and risk analysis. Use --file - to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeFn, err := openInput(cmd, flagFile)
			if err != nil {
				return err
			}
			defer closeFn()

			req, err := api.DecodeCalculation(in)
			if err != nil {
				return err
			}

			calc := service.NewCalculator(zap.NewNop())
			report, err := calc.Calculate(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("calculation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(out, report)
		},
	}

	cmd.Flags().StringVarP(&flagFile, "file", "f", "", "Project JSON file")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Print the full report as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func printReport(w io.Writer, report *service.Report) error {
	m := report.ProjectMetrics
	fmt.Fprintf(w, "Project:        %s\n", report.ProjectName)
	fmt.Fprintf(w, "Mode:           %s\n", report.AnalysisMode)
	fmt.Fprintf(w, "Duration:       %s days\n", formatDays(m.TotalDurationDays))
	fmt.Fprintf(w, "Overall risk:   %s (%d high risk tasks)\n", m.OverallRiskLevel, m.HighRiskTaskCount)
	fmt.Fprintf(w, "Critical tasks: %s\n\n", strings.Join(m.CriticalPathIDs, ", "))

	dated := report.ProjectStartDate != nil
	headers := []string{"ID", "Name", "Days", "Start", "Finish", "Float", "Risk", "Score", "Critical"}
	if dated {
		headers = append(headers, "Start date", "End date")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)

	for _, task := range report.Tasks {
		critical := ""
		if task.IsCritical {
			critical = "yes"
		}
		row := []string{
			task.ID,
			task.Name,
			formatDays(task.DurationDays),
			formatDays(task.ScheduledStartDay),
			formatDays(task.ScheduledFinishDay),
			formatDays(task.FloatDays),
			task.RiskLevel,
			formatDays(task.RiskScore),
			critical,
		}
		if dated {
			row = append(row, task.ActualStartDate, task.ActualEndDate)
		}
		t.Row(row...)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if row < 0 || row >= len(report.Tasks) {
			return cellStyle
		}
		task := report.Tasks[row]
		switch {
		case col == 6:
			if s, ok := riskStyles[task.RiskLevel]; ok {
				return s
			}
		case task.IsCritical && col == 0:
			return criticalStyle
		}
		return cellStyle
	})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatDays(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
