package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/speech"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// probeLevel grades the outcome of a single check
type probeLevel int

const (
	probeOK probeLevel = iota
	probeWarn
	probeFail
)

// probeResult is what one health check found
type probeResult struct {
	Name    string
	Level   probeLevel
	Summary string
	Details []string
}

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that jarvis can reach the backend and its local resources",
	Long: `Check the health of jarvis by verifying, in parallel:
  • Backend reachability
  • Validity of the configured token
  • Speech output and input engines
  • The local history cache

The command fails when the backend is unreachable or the token is rejected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		results := runProbes(cmd.Context(), a)
		return reportProbes(cmd.OutOrStdout(), results, healthcheckDetails)
	},
}

// runProbes runs every check concurrently. Checks record their outcome
// instead of returning errors so one failure does not cancel the others.
func runProbes(ctx context.Context, a *app) []probeResult {
	probes := []func(context.Context, *app) probeResult{
		probeBackend,
		probeToken,
		probeSpeechOutput,
		probeSpeechInput,
		probeCache,
	}
	results := make([]probeResult, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		i, probe := i, probe
		g.Go(func() error {
			results[i] = probe(gctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func probeBackend(ctx context.Context, a *app) probeResult {
	r := probeResult{Name: "Backend", Details: []string{"URL: " + a.client.BaseURL()}}
	status, err := a.client.Ping(ctx)
	if err != nil {
		r.Level = probeFail
		r.Summary = "Backend unreachable: " + internal.UserMessage(err)
		return r
	}
	r.Summary = "Backend reachable"
	if status.Status != "" {
		r.Details = append(r.Details, "Status: "+status.Status)
	}
	return r
}

func probeToken(ctx context.Context, a *app) probeResult {
	r := probeResult{Name: "Token"}
	token := a.store.Token()
	if token == "" {
		r.Level = probeWarn
		r.Summary = "No token configured, running as GUEST"
		r.Details = []string{"Set JARVIS_TOKEN or pass --token to sign in"}
		return r
	}
	profile, err := a.client.Me(ctx, token)
	if err != nil {
		r.Level = probeFail
		r.Summary = "Token rejected: " + internal.UserMessage(err)
		return r
	}
	r.Summary = "Signed in as " + profile.Name
	if profile.Email != "" {
		r.Details = append(r.Details, "Email: "+profile.Email)
	}
	if profile.Role != "" {
		r.Details = append(r.Details, "Role: "+profile.Role)
	}
	return r
}

func probeSpeechOutput(_ context.Context, a *app) probeResult {
	r := probeResult{Name: "Speech output"}
	if !a.cfg.Speech.Enabled {
		r.Level = probeWarn
		r.Summary = "Speech is disabled in the configuration"
		return r
	}
	s, err := speech.NewCommandSpeaker(a.cfg.Speech.Engine, a.cfg.Speech.Rate)
	if err != nil {
		r.Level = probeWarn
		r.Summary = "No speech engine available, replies will not be spoken"
		r.Details = []string{err.Error()}
		return r
	}
	r.Summary = "Speech engine found"
	r.Details = []string{"Engine: " + s.Engine()}
	return r
}

func probeSpeechInput(_ context.Context, a *app) probeResult {
	r := probeResult{Name: "Speech input"}
	if a.cfg.Speech.ListenCommand == "" {
		r.Level = probeWarn
		r.Summary = "No speech.listen_command configured, microphone input is off"
		return r
	}
	if _, err := speech.NewCommandRecognizer(a.cfg.Speech.ListenCommand); err != nil {
		r.Level = probeWarn
		r.Summary = "Speech recognizer unavailable"
		r.Details = []string{err.Error()}
		return r
	}
	r.Summary = "Speech recognizer found"
	r.Details = []string{"Command: " + a.cfg.Speech.ListenCommand}
	return r
}

func probeCache(_ context.Context, a *app) probeResult {
	r := probeResult{Name: "History cache"}
	if !a.cfg.Cache.Enabled {
		r.Level = probeWarn
		r.Summary = "History cache is disabled, --offline will not work"
		return r
	}
	cache, err := internal.OpenHistoryCache(a.cfg.Cache.Dir)
	if err != nil {
		r.Level = probeWarn
		r.Summary = "History cache unavailable"
		r.Details = []string{err.Error()}
		return r
	}
	defer cache.Close()
	r.Summary = "History cache ready"
	r.Details = []string{"Database: " + cache.Path()}
	return r
}

func reportProbes(out io.Writer, results []probeResult, details bool) error {
	fmt.Fprintln(out, sectionStyle.Render("🔍 Jarvis Health Check"))
	fmt.Fprintln(out)

	var failed []string
	for i, r := range results {
		fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("Step %d: %s", i+1, r.Name)))
		switch r.Level {
		case probeOK:
			fmt.Fprintln(out, successStyle.Render("✅ "+r.Summary))
		case probeWarn:
			fmt.Fprintln(out, warningStyle.Render("⚠️  "+r.Summary))
		case probeFail:
			fmt.Fprintln(out, errorStyle.Render("❌ "+r.Summary))
			failed = append(failed, r.Name)
		}
		if details {
			for _, d := range r.Details {
				fmt.Fprintf(out, "   %s\n", d)
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
	fmt.Fprintln(out)
	if len(failed) > 0 {
		fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
		return fmt.Errorf("health check failed: %s", strings.Join(failed, ", "))
	}
	fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
	return nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckDetails, "details", "d", false, "Show detailed diagnostic information")
}
