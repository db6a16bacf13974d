package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"auspex/internal/audit"
	"auspex/internal/config"
	"auspex/internal/llm"
	"auspex/internal/logging"
	"auspex/internal/pipeline"
	"auspex/internal/workspace"
)

var (
	analyzeHosts []string
	analyzeForce bool
	analyzeNoLLM bool
	analyzeStage string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis pipeline over the captured device logs",
	Long: `Run the five-stage analysis pipeline: split captured markdown into
command blocks, parse them deterministically, build per-host facts,
reason per device and correlate across the fleet. Stages whose
artifacts are fresh are skipped unless --force is given.`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeHosts, "hosts", nil,
		"Restrict the run to these hosts (comma-separated). Single-host runs skip correlation.")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "Re-run every stage even when artifacts are fresh")
	analyzeCmd.Flags().BoolVar(&analyzeNoLLM, "no-llm", false, "Skip model calls: deterministic extraction only, skeleton analyses")
	analyzeCmd.Flags().StringVar(&analyzeStage, "stage", "all", "Stop after this stage: split, parse, facts, reason, correlate or all")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, paths, err := loadRuntime()
	HandleError(err, "Configuration error")

	pipe, trail := buildPipeline(cfg, paths)
	defer trail.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := pipeline.Options{
		Hosts:   analyzeHosts,
		Force:   analyzeForce,
		SkipLLM: analyzeNoLLM,
	}
	if analyzeStage != "" && analyzeStage != "all" {
		opts.Until = analyzeStage
	}

	res, err := pipe.Run(ctx, opts)
	HandleError(err, "Analysis failed")
	printRunResult(paths, res)
}

// buildPipeline wires the audit trail, the configured model client and
// the stage pipeline. An unreachable model is not fatal: the pipeline
// degrades to deterministic extraction and skeleton analyses.
func buildPipeline(cfg *config.Config, paths workspace.Paths) (*pipeline.Pipeline, *audit.Trail) {
	trail, err := audit.New(paths.AuditDir, cfg.Audit.MaxBytes, cfg.Audit.RotateKeep)
	HandleError(err, "Audit trail error")

	client, err := llm.New(context.Background(), cfg.LLM)
	if err != nil {
		logging.GetLogger("cmd").Warn("Model client unavailable, continuing without LLM: %v", err)
		client = nil
	}

	pipe, err := pipeline.New(paths, cfg, client, trail)
	HandleError(err, "Pipeline setup error")
	return pipe, trail
}

func printRunResult(paths workspace.Paths, res *pipeline.Result) {
	fmt.Printf("run %s\n\n", res.RunID)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tRESULT\tDURATION")
	for _, stage := range []string{"split", "parse", "facts", "reason", "correlate"} {
		sr, ok := res.Stages[stage]
		if !ok {
			continue
		}
		dur := (time.Duration(sr.DurationMS) * time.Millisecond).String()
		switch {
		case sr.Skipped:
			fmt.Fprintf(w, "%s\tskipped (%s)\t-\n", stage, sr.Reason)
		case sr.Reason != "":
			fmt.Fprintf(w, "%s\tfailed (%s)\t%s\n", stage, sr.Reason, dur)
		default:
			fmt.Fprintf(w, "%s\tok\t%s\n", stage, dur)
		}
	}
	w.Flush()

	fmt.Println("\nartifacts:")
	names := make([]string, 0, len(res.Artifacts))
	for name := range res.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %s\n", name, paths.Rel(res.Artifacts[name]))
	}
}
