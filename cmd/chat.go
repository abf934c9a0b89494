package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatID string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <text>",
	Short: "Talk to Jarvis in a saved conversation",
	Long: `Send a message to Jarvis through the chat endpoint.

Without --chat-id a new conversation is started. The reply is printed first,
followed by the chat id to continue the conversation with.`,
	Example: `  jarvis chat "tell me a joke"
  jarvis chat --chat-id chat-7 "another one"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}

		resp, err := a.client.ChatMessage(cmd.Context(), token, strings.Join(args, " "), chatID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Reply)
		fmt.Fprintln(out, labelStyle.Render("chat: "+resp.ChatID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatID, "chat-id", "", "Continue an existing conversation")
}
