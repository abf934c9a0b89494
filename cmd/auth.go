package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/spf13/cobra"
)

// ErrPasswordMismatch is returned when the confirmation differs from the password
var ErrPasswordMismatch = errors.New("Access keys do not match")

var (
	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	guestStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register <name> <email>",
	Short: "Create a Jarvis account",
	Long: `Create a Jarvis account. The password is asked for twice.

New accounts start with the guest role; sign in with 'jarvis login' afterwards.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		password, err := p.Secret("Password")
		if err != nil {
			return err
		}
		confirm, err := p.Secret("Confirm password")
		if err != nil {
			return err
		}
		if password != confirm {
			return ErrPasswordMismatch
		}

		a := newApp(cfg)
		defer a.close()
		resp, err := a.client.Register(cmd.Context(), api.RegisterRequest{
			Name:            args[0],
			Email:           args[1],
			Password:        password,
			ConfirmPassword: confirm,
		})
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <email or name>",
	Short: "Sign in and print an access token",
	Long: `Sign in with your email (or user name) and password.

The access token is printed on standard output. jarvis never stores it; pass
it to later runs through JARVIS_TOKEN or --token:

  export JARVIS_TOKEN=$(jarvis login you@example.com)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := newPrompter(cmd).Secret("Password")
		if err != nil {
			return err
		}

		a := newApp(cfg)
		defer a.close()
		resp, err := a.client.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		name := resp.User.Name
		if name == "" {
			name = args[0]
		}
		internal.LogInfo("Signed in as %s", name)
		internal.PrintInfo(cmd.ErrOrStderr(), "Signed in as "+nameStyle.Render(name))
		fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
		return nil
	},
}

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the configured token belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()
		state := a.initAuth(cmd.Context())

		out := cmd.OutOrStdout()
		if state.IsGuest() {
			fmt.Fprintln(out, guestStyle.Render("GUEST"))
			fmt.Fprintln(out, "System commands are restricted. Use 'jarvis login' to sign in.")
			return nil
		}

		fmt.Fprintln(out, nameStyle.Render(state.DisplayName()))
		if state.Degraded {
			fmt.Fprintln(out, labelStyle.Render("(profile unavailable)"))
			return nil
		}
		printProfile(cmd, state.User)
		return nil
	},
}

func printProfile(cmd *cobra.Command, p *internal.Profile) {
	if p == nil {
		return
	}
	out := cmd.OutOrStdout()
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
		}
	}
	field("Email", p.Email)
	field("Role", p.Role)
	if p.SecureMode {
		field("Secure mode", "on")
	}
	field("Avatar", p.Avatar)
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
}
