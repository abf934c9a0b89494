package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/spf13/cobra"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change your account",
	Long:  `Show or change the account the configured token belongs to.`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}
		p, err := a.client.Me(cmd.Context(), token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), nameStyle.Render(p.Name))
		printProfile(cmd, p)
		return nil
	},
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Change your display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			return errors.New("name must not be empty")
		}
		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}
		resp, err := a.client.UpdateProfile(cmd.Context(), token, name)
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}

		p := newPrompter(cmd)
		current, err := p.Secret("Current password")
		if err != nil {
			return err
		}
		next, err := p.Secret("New password")
		if err != nil {
			return err
		}
		confirm, err := p.Secret("Confirm new password")
		if err != nil {
			return err
		}
		if next != confirm {
			return ErrPasswordMismatch
		}

		resp, err := a.client.ChangePassword(cmd.Context(), token, current, next)
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar <file>",
	Short: "Upload a profile picture (JPG or PNG)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if api.AvatarContentType(path) == "" {
			return fmt.Errorf("only JPG or PNG images can be uploaded: %s", path)
		}

		a := newApp(cfg)
		defer a.close()
		token, err := a.requireToken()
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		var resp *api.MessageResponse
		err = internal.ShowProgress(cmd.Context(), "Uploading avatar", func() error {
			var uploadErr error
			resp, uploadErr = a.client.UploadAvatar(cmd.Context(), token, path, f)
			return uploadErr
		})
		if err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), resp.Message)
		if resp.Avatar != "" {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Avatar)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileRenameCmd)
	profileCmd.AddCommand(profilePasswordCmd)
	profileCmd.AddCommand(profileAvatarCmd)
}
