package commands

import (
	"fmt"

	"github.com/jpokornyiii/ntcore-client/internal/cli/prompt"
	"github.com/jpokornyiii/ntcore-client/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initServer string
	initPort   int
	initLevel  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a config file",
	Long: `Write a new config file at the default location (or --config),
prompting for any value not already supplied via flags.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initServer, "server", "", "Server address (prompts if not provided)")
	initCmd.Flags().IntVar(&initPort, "port", 0, "Server port (prompts if not provided)")
	initCmd.Flags().StringVar(&initLevel, "log-level", "", "Log level (prompts if not provided)")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	var err error

	server := initServer
	if server == "" {
		server, err = prompt.InputRequired("Server address")
		if err != nil {
			return err
		}
	}
	cfg.ServerAddress = server

	port := initPort
	if port == 0 {
		port, err = prompt.InputPort("Server port", cfg.ServerPort)
		if err != nil {
			return err
		}
	}
	cfg.ServerPort = port

	level := initLevel
	if level == "" {
		level, err = prompt.SelectString("Log level", []string{"DEBUG", "INFO", "WARN", "ERROR"})
		if err != nil {
			return err
		}
	}
	cfg.Logging.Level = level

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	ok, err := prompt.Confirm(fmt.Sprintf("Write config to %s", path), true)
	if err != nil && err != prompt.ErrAborted {
		return err
	}
	if err == prompt.ErrAborted || !ok {
		return fmt.Errorf("init: aborted")
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
