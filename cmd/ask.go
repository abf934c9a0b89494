package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/spf13/cobra"
)

var (
	askListen bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one command to Jarvis",
	Long: `Send a single command to Jarvis and print the reply as it is typed out.

The reply is also spoken when a speech engine is available. Guests cannot run
system commands such as opening applications or reading system information.
With --listen the command is taken from the microphone instead.`,
	Example: `  jarvis ask "what is the weather in Paris"
  jarvis ask --listen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if askListen && text != "" {
			return errors.New("give either text or --listen, not both")
		}
		if !askListen && strings.TrimSpace(text) == "" {
			return errors.New("nothing to ask")
		}

		ctx := cmd.Context()
		a := newApp(cfg)
		defer a.close()
		a.initAuth(ctx)

		if askListen {
			rec := a.newRecognizer()
			err := internal.ShowProgress(ctx, string(dispatch.StatusListening), func() error {
				var listenErr error
				text, listenErr = rec.Listen(ctx)
				return listenErr
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "› %s\n", text)
		}

		out := &revealWriter{w: cmd.OutOrStdout()}
		d := a.newDispatcher(out.emit)
		defer d.Close()

		res, err := d.Dispatch(ctx, text, internal.MainTarget())
		if err != nil {
			return err
		}
		<-d.Presenter().Done()
		out.finish()
		a.waitSpeech()

		switch {
		case res.Restricted:
			return errors.New("system commands need a signed-in user")
		case res.Failed:
			return errors.New("request failed")
		}
		return nil
	},
}

// revealWriter prints the presenter's growing prefixes as a typing effect,
// writing only the runes that are new since the last prefix.
type revealWriter struct {
	w io.Writer

	mu      sync.Mutex
	printed []rune
}

func (r *revealWriter) emit(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runes := []rune(prefix)
	if len(runes) < len(r.printed) || string(runes[:len(r.printed)]) != string(r.printed) {
		// a new reveal started; continue on a fresh line
		if len(r.printed) > 0 {
			fmt.Fprintln(r.w)
		}
		r.printed = nil
	}
	fmt.Fprint(r.w, string(runes[len(r.printed):]))
	r.printed = runes
}

// finish ends the revealed line
func (r *revealWriter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.printed) > 0 {
		fmt.Fprintln(r.w)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVarP(&askListen, "listen", "l", false, "Take the command from the microphone")
}
