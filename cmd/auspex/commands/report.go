package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"auspex/internal/report"
)

var reportHost string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the latest analysis as a terminal report",
	Long: `Render the cross-device analysis (or one device's analysis with
--host) as styled markdown. Reads artifacts only; run 'auspex analyze'
first.`,
	Run: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportHost, "host", "", "Render one device's analysis instead of the network report")
}

func runReport(cmd *cobra.Command, args []string) {
	_, paths, err := loadRuntime()
	HandleError(err, "Configuration error")

	var out string
	if reportHost != "" {
		out, err = report.Device(paths, reportHost)
	} else {
		out, err = report.Network(paths)
	}
	HandleError(err, "Report error")
	fmt.Print(out)
}
