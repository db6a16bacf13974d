// Package report renders analysis artifacts for the terminal: the
// fleet-wide report or one device's analysis, as markdown through
// glamour when stdout is a terminal and as plain markdown when piped.
package report

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"auspex/internal/correlate"
	"auspex/internal/reason"
	"auspex/internal/workspace"
)

// rollupOrder fixes the status table row order.
var rollupOrder = []string{"healthy", "degraded", "error", "unknown"}

// Network renders the fleet-wide report from the cross-device artifact.
func Network(paths workspace.Paths) (string, error) {
	doc, err := correlate.Load(paths)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", errors.New("no network report yet; run an analysis first")
	case err != nil:
		return "", err
	}

	banner := "Network status: " + statusWord(doc.TaskStatus)
	return banner + "\n" + render(buildNetworkMarkdown(doc)), nil
}

// Device renders one device's analysis from the per-device artifact.
func Device(paths workspace.Paths, host string) (string, error) {
	perDev, err := reason.Load(paths)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", errors.New("no per-device analysis yet; run an analysis first")
	case err != nil:
		return "", err
	}

	an, ok := perDev.Devices[host]
	if !ok {
		return "", fmt.Errorf("no analysis for host %s", host)
	}

	banner := host + " status: " + statusWord(an.Status)
	return banner + "\n" + render(buildDeviceMarkdown(an)), nil
}

func buildNetworkMarkdown(doc *correlate.Document) string {
	var b strings.Builder

	b.WriteString("# Network report\n\n")
	if doc.NetworkSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", doc.NetworkSummary)
	}
	if doc.GeneratedAt > 0 {
		fmt.Fprintf(&b, "_Generated %s by %s._\n\n",
			time.Unix(doc.GeneratedAt, 0).Format("2006-01-02 15:04 MST"), doc.Model)
	}

	b.WriteString("## Status rollup\n\n")
	b.WriteString("| Status | Devices |\n|---|---|\n")
	for _, status := range rollupOrder {
		fmt.Fprintf(&b, "| %s | %d |\n", status, doc.StatusRollup[status])
	}
	b.WriteString("\n")

	if len(doc.TopIncidents) > 0 {
		b.WriteString("## Top incidents\n\n")
		for i, inc := range doc.TopIncidents {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, inc.Summary)
			if inc.Impact != "" {
				fmt.Fprintf(&b, "- Impact: %s\n", inc.Impact)
			}
			if inc.Scope != "" {
				fmt.Fprintf(&b, "- Scope: %s\n", inc.Scope)
			}
			if len(inc.Devices) > 0 {
				fmt.Fprintf(&b, "- Devices: %s\n", strings.Join(inc.Devices, ", "))
			}
			for _, ev := range inc.Evidence {
				fmt.Fprintf(&b, "- Evidence: `%s: %s`\n", ev.Host, ev.Path)
			}
			b.WriteString("\n")
		}
	}

	if len(doc.NotableDevices) > 0 {
		b.WriteString("## Notable devices\n\n")
		for _, nd := range doc.NotableDevices {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", nd.Host, nd.Status, nd.Note)
			fmt.Fprintf(&b, "  - Evidence: `%s: %s`\n", nd.Evidence.Host, nd.Evidence.Path)
		}
		b.WriteString("\n")
	}

	if len(doc.RemediationThemes) > 0 {
		b.WriteString("## Remediation themes\n\n")
		for i, theme := range doc.RemediationThemes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, theme)
		}
		b.WriteString("\n")
	}

	writeCommandList(&b, "## Follow-up commands (trusted)", doc.TrustedFollowupCmds)
	writeCommandList(&b, "## Follow-up commands (needs operator review)", doc.UnvalidatedFollowupCmds)
	writeCommandList(&b, "## Optional active probes", doc.OptionalActiveProbes)

	return b.String()
}

func buildDeviceMarkdown(an reason.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", an.Hostname)
	if an.StatusReason != "" {
		fmt.Fprintf(&b, "%s\n\n", an.StatusReason)
	}
	if an.Platform != "" {
		fmt.Fprintf(&b, "- Platform: %s\n", an.Platform)
	}
	if len(an.SignalsSeen) > 0 {
		fmt.Fprintf(&b, "- Signals: %s\n", strings.Join(an.SignalsSeen, ", "))
	}
	b.WriteString("\n")

	if len(an.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range an.Findings {
			fmt.Fprintf(&b, "- **%s** [%s] %s\n", f.Severity, f.Signal, f.Summary)
			if f.EvidenceRef != nil {
				fmt.Fprintf(&b, "  - Evidence: `%s`\n", f.EvidenceRef.Path)
			}
		}
		b.WriteString("\n")
	}

	writeObservations(&b, "## Suspect", an.Suspect)
	writeObservations(&b, "## Healthy", an.OK)
	writeCommandList(&b, "## Recommended show commands", an.RecommendedShowCmds)
	writeCommandList(&b, "## Optional active commands", an.OptionalActiveCmds)

	return b.String()
}

func writeObservations(b *strings.Builder, heading string, obs []reason.Observation) {
	if len(obs) == 0 {
		return
	}
	b.WriteString(heading + "\n\n")
	for _, o := range obs {
		fmt.Fprintf(b, "- %s\n", o.Summary)
		if o.EvidenceRef != nil {
			fmt.Fprintf(b, "  - Evidence: `%s`\n", o.EvidenceRef.Path)
		}
	}
	b.WriteString("\n")
}

func writeCommandList(b *strings.Builder, heading string, cmds []string) {
	if len(cmds) == 0 {
		return
	}
	b.WriteString(heading + "\n\n")
	for _, c := range cmds {
		fmt.Fprintf(b, "- `%s`\n", c)
	}
	b.WriteString("\n")
}

// render pretty-prints markdown for terminals and passes it through
// untouched when stdout is piped.
func render(markdown string) string {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return markdown
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = 80
	}
	if width > 120 {
		width = 120
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
