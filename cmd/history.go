package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/export"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var (
	historySearch  string
	historyOffline bool
	historyAccount string
	historyYes     bool
	historyFormat  string
	historyOut     string
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse, export and delete past conversations",
	Long: `Browse, export and delete the conversations of your account.

Fetched history is cached locally, so 'list' and 'show' also work with
--offline when the backend is unreachable. Offline access needs --account
since there is no backend to say who the token belongs to.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Long: `List conversations, newest first. Conversations without a message from
you are hidden. --search ranks the list by fuzzy match on the title.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		convs, err := loadHistory(cmd.Context(), a)
		if err != nil {
			return err
		}
		displayConversations(cmd.OutOrStdout(), searchConversations(convs, historySearch))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		conv, err := findConversation(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		displayConversation(cmd.OutOrStdout(), conv)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}

		if !historyYes {
			ok, err := newPrompter(cmd).Confirm(fmt.Sprintf("Delete conversation %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				internal.PrintWarning(cmd.ErrOrStderr(), "Cancelled")
				return nil
			}
		}

		ctx := cmd.Context()
		err = internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
			{
				Message: "Deleting conversation",
				Fn:      func() error { return a.client.DeleteHistory(ctx, token, id) },
			},
			{
				Message: "Updating history cache",
				Fn:      func() error { a.forgetCached(ctx, id); return nil },
			},
		})
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), "Deleted "+id)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <chat-id>",
	Short: "Export a conversation to a file",
	Long: fmt.Sprintf(`Export a conversation to a file (%s).

The file is written to --out (a directory, default the current one) as
jarvis-<chat-id>.<ext>. Use --out - to write to standard output.`, strings.Join(export.Formats, ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(historyFormat)
		if err != nil {
			return err
		}

		a := newApp(cfg)
		defer a.close()
		conv, err := findConversation(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}

		if historyOut == "-" {
			if err := exporter.Export(conv, cmd.OutOrStdout()); err != nil {
				return &internal.ExportError{Format: historyFormat, Path: "stdout", Err: err}
			}
			return nil
		}

		path := filepath.Join(historyOut, export.FileName(conv, exporter))
		if err := writeExport(exporter, conv, path); err != nil {
			return &internal.ExportError{Format: historyFormat, Path: path, Err: err}
		}
		internal.LogInfo("Exported %s to %s", conv.ID, path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func writeExport(e export.Exporter, conv *internal.Conversation, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := e.Export(conv, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// owner returns the email the configured token belongs to, which keys the
// history cache. It is "" for guests and when the profile is unavailable.
func (a *app) owner(ctx context.Context) string {
	state := a.initAuth(ctx)
	if state.User == nil || state.Degraded {
		return ""
	}
	return state.User.Email
}

// forgetCached drops a deleted conversation from the signed-in user's cache
func (a *app) forgetCached(ctx context.Context, id string) {
	owner := a.owner(ctx)
	if owner == "" {
		return
	}
	cache := a.openCache()
	if cache == nil {
		return
	}
	if err := cache.Delete(owner, id); err != nil {
		internal.LogWarn("Failed to remove %s from the history cache: %v", id, err)
	}
}

// loadHistory fetches the account's conversations and refreshes the cache,
// or reads the cache alone with --offline.
func loadHistory(ctx context.Context, a *app) ([]internal.Conversation, error) {
	if historyOffline {
		return loadCachedHistory()
	}

	token, err := a.requireToken()
	if err != nil {
		return nil, err
	}
	var convs []internal.Conversation
	err = internal.ShowProgress(ctx, "Fetching history", func() error {
		var fetchErr error
		convs, fetchErr = a.client.History(ctx, token)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	if owner := a.owner(ctx); owner != "" {
		if cache := a.openCache(); cache != nil {
			if err := cache.Replace(owner, convs); err != nil {
				internal.LogWarn("Failed to update the history cache: %v", err)
			}
		}
	}
	return convs, nil
}

func loadCachedHistory() ([]internal.Conversation, error) {
	if historyAccount == "" {
		return nil, errors.New("--offline needs --account <email>")
	}
	cache, err := internal.OpenHistoryCacheReadOnly(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	entries, err := cache.List(historyAccount)
	if err != nil {
		return nil, err
	}
	convs := make([]internal.Conversation, 0, len(entries))
	var synced time.Time
	for _, entry := range entries {
		convs = append(convs, entry.Conversation)
		if entry.SyncedAt.After(synced) {
			synced = entry.SyncedAt
		}
	}
	if !synced.IsZero() {
		internal.LogInfo("Showing history cached %s", synced.Format("2006-01-02 15:04"))
	}
	return convs, nil
}

// findConversation looks up one conversation online, or in the cache with --offline
func findConversation(ctx context.Context, a *app, id string) (*internal.Conversation, error) {
	if historyOffline {
		if historyAccount == "" {
			return nil, errors.New("--offline needs --account <email>")
		}
		cache, err := internal.OpenHistoryCacheReadOnly(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		defer cache.Close()
		entry, err := cache.Get(historyAccount, id)
		if errors.Is(err, internal.ErrNotCached) {
			return nil, fmt.Errorf("conversation not found in cache: %s", id)
		}
		if err != nil {
			return nil, err
		}
		return &entry.Conversation, nil
	}

	convs, err := loadHistory(ctx, a)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].ID == id {
			return &convs[i], nil
		}
	}
	return nil, fmt.Errorf("conversation not found: %s", id)
}

// searchConversations drops untitled conversations and, with a query, ranks
// the rest by fuzzy match on the title.
func searchConversations(convs []internal.Conversation, query string) []internal.Conversation {
	var titled []internal.Conversation
	var titles []string
	for _, conv := range convs {
		if title, ok := conv.Title(); ok {
			titled = append(titled, conv)
			titles = append(titles, title)
		}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return titled
	}

	matches := fuzzy.Find(query, titles)
	ranked := make([]internal.Conversation, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, titled[m.Index])
	}
	return ranked
}

func displayConversations(out io.Writer, convs []internal.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No conversations found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Found %d conversation(s)", len(convs))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Started")+"\t")

	for _, conv := range convs {
		title, _ := conv.Title()
		if r := []rune(title); len(r) > 50 {
			title = string(r[:47]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(conv.ID),
			title,
			countStyle.Render(strconv.Itoa(len(conv.Messages))),
			dateStyle.Render(formatStarted(conv.StartedAt, time.Now())))
	}
	_ = w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("Tip: jarvis history show %s", convs[0].ID)))
}

func displayConversation(out io.Writer, conv *internal.Conversation) {
	title, ok := conv.Title()
	if !ok {
		title = "Untitled"
	}
	fmt.Fprintln(out, headerStyle.Render(title))
	meta := "Chat " + conv.ID
	if !conv.StartedAt.IsZero() {
		meta += " · started " + conv.StartedAt.Time.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintln(out, dateStyle.Render(meta))
	fmt.Fprintln(out)

	for _, msg := range conv.Messages {
		label := assistantMessageStyle.Render("Jarvis")
		if msg.Role == internal.RoleUser {
			label = userMessageStyle.Render("You")
		}
		if !msg.Time.IsZero() {
			label += " " + idStyle.Render(msg.Time.Time.Local().Format("15:04"))
		}
		fmt.Fprintln(out, label)
		fmt.Fprintln(out, messageContentStyle.Render(msg.Text))
	}
}

// formatStarted renders a start time relative to now
func formatStarted(ts internal.Timestamp, now time.Time) string {
	if ts.IsZero() {
		return "—"
	}
	t := ts.Time.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.YearDay() == now.YearDay():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyCmd.PersistentFlags().BoolVar(&historyOffline, "offline", false, "Read the local history cache instead of the backend")
	historyCmd.PersistentFlags().StringVar(&historyAccount, "account", "", "Account email whose cache --offline reads")
	historyListCmd.Flags().StringVarP(&historySearch, "search", "s", "", "Rank conversations by fuzzy match on the title")
	historyDeleteCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "Delete without asking")
	historyExportCmd.Flags().StringVarP(&historyFormat, "format", "f", "md", "Export format: "+strings.Join(export.Formats, ", "))
	historyExportCmd.Flags().StringVarP(&historyOut, "out", "o", ".", "Output directory, or - for standard output")
}
