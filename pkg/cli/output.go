package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Slow step threshold
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// printFlowResult prints one finished flow with its command tree.
func printFlowResult(w io.Writer, idx, total int, res core.FlowResult) {
	fmt.Fprintf(w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), res.Name, color(colorReset), res.FilePath)
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, cmd := range res.Commands {
		printCommand(w, cmd)
	}

	symbol, symbolColor := statusSymbol(res.Status)
	fmt.Fprintf(w, "%s%s %s%s %s%s%s\n",
		symbolColor, symbol, color(colorReset), res.Name,
		color(colorGray), formatDuration(res.Duration), color(colorReset))
}

func printCommand(w io.Writer, cmd core.CommandResult) {
	// Base indent (4 spaces) + 2 spaces per depth level
	indent := strings.Repeat("  ", 2+cmd.Depth)
	symbol, symbolColor := statusSymbol(cmd.Status)
	durColor := ""
	if cmd.Status == core.StatusCompleted && cmd.Duration >= slowThreshold && cmd.NumberOfRuns == nil {
		durColor = color(colorYellow)
	}

	desc := cmd.Description
	if cmd.NumberOfRuns != nil {
		desc = fmt.Sprintf("%s (%d runs)", desc, *cmd.NumberOfRuns)
	}
	fmt.Fprintf(w, "%s%s%s%s %s %s(%s)%s\n",
		indent, symbolColor, symbol, color(colorReset), desc,
		durColor, formatDuration(cmd.Duration), color(colorReset))

	switch {
	case cmd.Error != "":
		fmt.Fprintf(w, "%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), cmd.Error)
	case cmd.Insight != nil && cmd.Insight.Message != "":
		fmt.Fprintf(w, "%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), cmd.Insight.Message)
	}
	for _, line := range cmd.Logs {
		fmt.Fprintf(w, "%s  %s│%s %s\n", indent, color(colorGray), color(colorReset), line)
	}
}

func statusSymbol(s core.CommandStatus) (string, string) {
	switch s {
	case core.StatusCompleted:
		return "✓", color(colorGreen)
	case core.StatusWarned:
		return "⚠", color(colorYellow)
	case core.StatusSkipped:
		return "-", color(colorCyan)
	case core.StatusFailed:
		return "✗", color(colorRed)
	default:
		return "•", color(colorGray)
	}
}

// printSummary prints the per-flow table and totals.
func printSummary(w io.Writer, suite core.SuiteResult) {
	var total, completed, failed, skipped, warned int
	for _, fr := range suite.Flows {
		total += fr.TotalCommands
		completed += fr.CompletedCommands
		failed += fr.FailedCommands
		skipped += fr.SkippedCommands
		warned += fr.WarnedCommands
	}

	fmt.Fprintln(w)
	if completed > 0 {
		fmt.Fprintf(w, "  %s%d commands passing%s (%s)\n", color(colorGreen), completed, color(colorReset), formatDuration(suite.Duration))
	}
	if warned > 0 {
		fmt.Fprintf(w, "  %s%d commands warned%s\n", color(colorYellow), warned, color(colorReset))
	}
	if failed > 0 {
		fmt.Fprintf(w, "  %s%d commands failing%s\n", color(colorRed), failed, color(colorReset))
	}
	if skipped > 0 {
		fmt.Fprintf(w, "  %s%d commands skipped%s\n", color(colorCyan), skipped, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, fr := range suite.Flows {
		var status, statusColor string
		switch fr.Status {
		case core.StatusFailed:
			status, statusColor = "✗ FAIL", color(colorRed)
		case core.StatusSkipped, core.StatusPending:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✓ PASS", color(colorGreen)
		}

		// Truncate name if too long
		name := fr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.TotalCommands, fr.CompletedCommands+fr.WarnedCommands, fr.FailedCommands, fr.SkippedCommands,
			formatDuration(fr.Duration))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.PassedFlows, suite.TotalFlows)
	statusColor := color(colorGreen)
	if suite.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		total, completed+warned, failed, skipped,
		formatDuration(suite.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration shows milliseconds below one second, seconds below one
// minute and minutes above.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
