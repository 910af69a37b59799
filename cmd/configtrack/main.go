package main

import (
	"fmt"
	"os"

	"configtrack/internal/config"
	"configtrack/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "configtrack",
	Short: "Capture tutorial configuration sessions from a controlled browser",
	Long: `configtrack opens a tutorial page in a controlled Chrome window, mirrors the
page console, files configuration events into a timestamped session log and
saves exported configuration files next to it.

Close the browser window or press Ctrl+C to end a session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logging.For(logger, cfg.Logging, logging.CategoryBoot).Debug("config resolved",
			zap.String("path", configPath),
			zap.String("profile", cfg.Profile),
			zap.String("target", cfg.Target))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file (missing file means defaults)")

	addRunFlags(runCmd)

	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "text", "Output format (text, markdown)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum sessions to list (0 for all)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
