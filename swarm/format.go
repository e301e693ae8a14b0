package swarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeReportPrecision rounds durations in the token report for readability.
const timeReportPrecision = time.Millisecond

// Output format names accepted at the tool boundary.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatPlain    = "plain"
)

// FormatResult renders a run result in the requested format. Unknown or
// empty format names fall back to markdown. When withUsage is set a short
// token report is appended (markdown and plain only; the JSON rendering
// already carries the usage fields).
func FormatResult(result *Result, format string, withUsage bool) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return formatJSON(result)
	case FormatPlain:
		return formatPlain(result, withUsage)
	default:
		return formatMarkdown(result, withUsage)
	}
}

func formatJSON(result *Result) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		// Result contains only marshalable fields; this path exists so the
		// boundary can never raise.
		return fmt.Sprintf(`{"run_id":%q,"overall_status":%q}`, result.RunID, result.OverallStatus)
	}
	return string(data)
}

func formatMarkdown(result *Result, withUsage bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Swarm Result (%s)\n\n", result.SwarmType)
	fmt.Fprintf(&b, "**Status:** %s\n", result.OverallStatus)
	if result.AggregationDegraded {
		b.WriteString("**Note:** synthesis unavailable, outputs concatenated\n")
	}

	for _, r := range result.AgentResults {
		fmt.Fprintf(&b, "\n### %s\n\n", r.AgentName)
		switch r.Status {
		case AgentSuccess:
			b.WriteString(r.Output)
			b.WriteString("\n")
		case AgentSkipped:
			b.WriteString("_Skipped._\n")
		default:
			fmt.Fprintf(&b, "_%s: %s_\n", r.Status, r.Error)
		}
	}

	if result.AggregatedOutput != "" {
		fmt.Fprintf(&b, "\n### Final Answer\n\n%s\n", result.AggregatedOutput)
	}

	if withUsage {
		b.WriteString("\n")
		b.WriteString(tokenReport(result))
	}

	return b.String()
}

func formatPlain(result *Result, withUsage bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Swarm %s finished with status %s.\n", result.SwarmType, result.OverallStatus)

	for _, r := range result.AgentResults {
		switch r.Status {
		case AgentSuccess:
			fmt.Fprintf(&b, "\n[%s]\n%s\n", r.AgentName, r.Output)
		case AgentSkipped:
			fmt.Fprintf(&b, "\n[%s] skipped\n", r.AgentName)
		default:
			fmt.Fprintf(&b, "\n[%s] %s: %s\n", r.AgentName, r.Status, r.Error)
		}
	}

	if result.AggregatedOutput != "" {
		fmt.Fprintf(&b, "\nFinal answer:\n%s\n", result.AggregatedOutput)
	}

	if withUsage {
		b.WriteString("\n")
		b.WriteString(tokenReport(result))
	}

	return b.String()
}

// tokenReport summarizes the run's token accounting in one block.
func tokenReport(result *Result) string {
	var b strings.Builder
	b.WriteString("Token usage:\n")
	fmt.Fprintf(&b, "  calls: %d\n", result.Usage.Calls)
	fmt.Fprintf(&b, "  tokens in: %d\n", result.Usage.TokensIn)
	fmt.Fprintf(&b, "  tokens out: %d\n", result.Usage.TokensOut)
	fmt.Fprintf(&b, "  duration: %s\n", result.Duration.Round(timeReportPrecision))
	return b.String()
}
