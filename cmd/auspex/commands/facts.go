package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var factsCmd = &cobra.Command{
	Use:   "facts <host>",
	Short: "Print the facts document for one device",
	Long: `Print the aggregated facts JSON for one device: every captured command
with its provenance, structured data and evidence paths. This is the
document all analysis findings are validated against.`,
	Args: cobra.ExactArgs(1),
	Run:  runFactsCmd,
}

func runFactsCmd(cmd *cobra.Command, args []string) {
	_, paths, err := loadRuntime()
	HandleError(err, "Configuration error")

	host := args[0]
	data, err := os.ReadFile(paths.HostFactsPath(host))
	if os.IsNotExist(err) {
		HandleError(fmt.Errorf("no facts for host %q; run 'auspex analyze' first", host), "Facts not found")
	}
	HandleError(err, "Failed to read facts")
	os.Stdout.Write(data)
}
