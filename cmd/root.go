package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/config"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	backendURL string
	tokenFlag  string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is loaded before any command runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Terminal client for the Jarvis assistant",
	Long: `A terminal client for the Jarvis assistant.

Run without a command to open the interactive console: type commands,
open replies in popup windows, and keep several conversations going at once.
Guests may chat with Jarvis but cannot run system commands.

Features:
  • Interactive console with popup windows and a taskbar
  • One-shot commands with spoken replies
  • Account management (register, login, profile)
  • Chat history with search, offline cache and export

Quick Start:
  jarvis                                 # Open the console
  jarvis ask "what time is it"           # Run a single command
  jarvis login you@example.com           # Get an access token
  jarvis history list                    # Browse past conversations

Configuration is read from --config, ./jarvis.yaml or
~/.jarvis-console/config.yaml. Environment variables use the JARVIS_ prefix
(JARVIS_TOKEN, JARVIS_BACKEND_BASE_URL).`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runConsole,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer internal.SyncLogger()
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(os.Stderr, "Error: "+internal.UserMessage(err))
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the global flags on top of it
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendURL != "" {
		c.Backend.BaseURL = backendURL
	}
	if tokenFlag != "" {
		c.Token = tokenFlag
	}
	if err := c.Validate(); err != nil {
		return err
	}

	level, err := internal.ParseLogLevel(c.Log.Level)
	if err != nil {
		return err
	}
	internal.SetLogLevel(level)
	if verbose {
		internal.SetVerbose(true)
	}
	if err := internal.ConfigureLogOutput(c.Log.Format, "stderr"); err != nil {
		return err
	}
	if c.File != "" {
		internal.LogDebug("Loaded config from %s", c.File)
	}

	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./jarvis.yaml or ~/.jarvis-console/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides backend.base_url)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Access token (overrides JARVIS_TOKEN)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
