package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"auspex/internal/config"
	"auspex/internal/logging"
	"auspex/internal/workspace"
)

// Version is stamped into run metadata, the HTTP health response and
// the MCP server identity.
const Version = "0.1.0"

var (
	configPath    string
	dataDirFlag   string
	logLevelFlags []string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "auspex",
	Short: "Auspex - evidence-grounded network triage",
	Long: `Auspex refines read-only CLI captures from network devices through a
five-stage pipeline: markdown splitting, deterministic parsing, fact
extraction, per-device analysis and cross-device correlation. Every
claim in the output carries an evidence reference that resolves inside
the on-disk facts artifacts.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"Workspace root holding capture/, analysis/ and knowledge/ (overrides config)")
	// Supports per-package log levels: --log-level debug --log-level facts=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level", nil,
		"Log level for packages. A bare level sets the default; 'package=level' overrides one package.\n"+
			"Examples: --log-level debug (all), --log-level facts=debug --log-level pipeline=warn")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log output format: console or json (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the auspex version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("auspex " + Version)
	},
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// loadRuntime assembles the context every subcommand needs: the merged
// configuration, an initialized logging backend and the resolved
// workspace tree with its directories present.
func loadRuntime() (*config.Config, workspace.Paths, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, workspace.Paths{}, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if logFormatFlag != "" {
		cfg.LogFormat = logFormatFlag
	}

	defLevel, pkgLevels, err := parseLogLevelFlags(logLevelFlags, cfg.LogLevel)
	if err != nil {
		return nil, workspace.Paths{}, err
	}
	if err := logging.Initialize(logging.Options{
		Level:         defLevel,
		Format:        cfg.LogFormat,
		PackageLevels: pkgLevels,
	}); err != nil {
		return nil, workspace.Paths{}, err
	}

	paths, err := workspace.Resolve(cfg.DataDir)
	if err != nil {
		return nil, workspace.Paths{}, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, workspace.Paths{}, err
	}
	return cfg, paths, nil
}

// parseLogLevelFlags parses CLI flags and environment variables
// Priority: CLI flags > Environment variables > config default
//
// CLI format: ["debug"], ["facts=debug", "pipeline=warn"]
// Env vars: LOG_LEVEL_FACTS=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(flags []string, configDefault string) (string, map[string]string, error) {
	levels := map[string]string{}

	// Environment variables first (lower priority).
	for _, envPair := range os.Environ() {
		if !strings.HasPrefix(envPair, "LOG_LEVEL_") {
			continue
		}
		parts := strings.SplitN(envPair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		// LOG_LEVEL_GRAPH_SYNC=debug -> graph.sync
		pkg := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(parts[0], "LOG_LEVEL_"), "_", "."))
		levels[pkg] = parts[1]
	}

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			levels["default"] = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		levels[parts[0]] = parts[1]
	}

	defLevel := configDefault
	if defLevel == "" {
		defLevel = "info"
	}
	if level, ok := levels["default"]; ok {
		defLevel = level
		delete(levels, "default")
	}

	if _, err := logging.ParseLevel(defLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range levels {
		if _, err := logging.ParseLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
	}
	return defLevel, levels, nil
}
