package cmd

import (
	"fmt"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/tui"
	"github.com/spf13/cobra"
)

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive console (default)",
	Long: `Open the interactive Jarvis console.

Type a command and press enter to send it. ctrl+o opens the last reply in a
popup window with its own conversation; windows can be moved, minimized to
the taskbar and closed. Type /help inside the console for all keys and
commands.

Log output goes to log.file while the console is open.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	if err := internal.ConfigureLogOutput(cfg.Log.Format, cfg.Log.File); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	ctx := cmd.Context()
	a := newApp(cfg)
	defer a.close()
	a.initAuth(ctx)

	d := a.newDispatcher(nil)
	defer d.Close()
	wm := a.newWindows(d)

	internal.LogInfo("Console started against %s", a.client.BaseURL())
	return tui.Run(tui.Deps{
		Context:    ctx,
		Dispatcher: d,
		Windows:    wm,
		Store:      a.store,
		Auth:       a.auth,
		Backend:    a.client,
		Recognizer: a.newRecognizer(),
		Cache:      a.openCache(),
		TaskbarCap: cfg.Windows.TaskbarCap,
		Notice:     a.speechNotice,
	})
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
