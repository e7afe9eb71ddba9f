package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/spotlens-io/spotlens/cli/render"
	"github.com/spotlens-io/spotlens/pipeline"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect commands are read-only.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect saved scan artifacts",
		Subcommands: []*cli.Command{
			inspectReportCommand(),
		},
	}
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Inspect a saved scan report",
		ArgsUsage: "<report-path>",
		Flags:     OutputFlags(),
		Action:    inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report path required", exitUsageError)
	}
	reportPath := c.Args().First()

	report, err := readReport(reportPath)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	if c.Bool("tui") {
		return r.RenderTUI("report", report)
	}

	return r.Render(report)
}

// readReport loads and validates a scan report JSON file.
func readReport(path string) (*pipeline.ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read report: %w", err)
	}

	var report pipeline.ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid report JSON in %s: %w", path, err)
	}
	if report.ScanID == "" {
		return nil, fmt.Errorf("invalid report in %s: missing scan_id", path)
	}

	return &report, nil
}
