// Package cli implements the voicepunch command line: a rendezvous server
// (`serve`), a calling peer (`call`), and a room listing helper (`rooms`).
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/saintparish4/voicepunch/internal/config"
)

var (
	cfgPath string
	verbose bool

	// cfg holds file-based defaults, loaded before any subcommand runs.
	cfg = &config.File{}
)

var rootCmd = &cobra.Command{
	Use:   "voicepunch",
	Short: "Peer-to-peer voice calls through NAT with UDP hole-punching",
	Long: `Voicepunch establishes a direct two-party audio session between peers
that are both behind NAT. A small rendezvous server exchanges the peers'
public addresses; the audio itself flows peer-to-peer over UDP after
hole-punching, with text chat riding the signaling connection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logrus.InfoLevel
		if verbose {
			level = logrus.DebugLevel
		}
		logrus.SetLevel(level)

		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ~/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// stringDefault returns the flag value, falling back to the config file
// value when the flag was not set on the command line.
func stringDefault(cmd *cobra.Command, flag, flagValue, fileValue string) string {
	if !cmd.Flags().Changed(flag) && fileValue != "" {
		return fileValue
	}
	return flagValue
}

// intDefault is stringDefault for integer flags.
func intDefault(cmd *cobra.Command, flag string, flagValue, fileValue int) int {
	if !cmd.Flags().Changed(flag) && fileValue != 0 {
		return fileValue
	}
	return flagValue
}
