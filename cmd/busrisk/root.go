package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"busrisk/internal/slogutil"
	"busrisk/internal/version"
)

var (
	// verbosity counts -v flags
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "busrisk",
	Short: "busrisk - find code only departing authors understand",
	Long: `busrisk replays the git history of every interesting file in a project,
tracks which groups of authors know each surviving line, and reports how much
of that knowledge is at risk of leaving with its authors.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("busrisk version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log output (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}

// cliLevel returns the console level chosen by flags, or nil when no
// verbosity flag was given so the config decides
func cliLevel() *slog.Level {
	if verbosity == 0 && !quiet {
		return nil
	}
	level := slogutil.LevelFromVerbosity(verbosity, quiet)
	return &level
}
