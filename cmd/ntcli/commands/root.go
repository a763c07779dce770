// Package commands implements the ntcli diagnostic CLI: connect to an
// ntcore server, inspect its live entry table, invoke RPCs, and tail
// connection/entry events.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	flagConfigPath string
	flagServer     string
	flagPort       int
	flagOutput     string
	flagNoColor    bool
	flagVerbose    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ntcli",
	Short: "ntcore diagnostic client",
	Long: `ntcli is a command-line diagnostic tool for ntcore telemetry servers.

Use it to connect to a server, print the live entry table, invoke RPCs,
and tail connection and entry events while developing or debugging a
server or another client.

Use "ntcli [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server address (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(rpcCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
