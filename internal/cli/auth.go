package cli

import (
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ws.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			a.printer.Success("Logged in as %s", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.ws.Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			a.printer.Success("Registered %s (%s)", u.Username, u.Email)
			a.printer.Print("Run 'sprintctl login --email %s' to start a session.", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "password (8 to 72 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and revoke its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ws.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printer.Success("Logged out")
			return nil
		},
	}
}

func newForgotPasswordCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.ws.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			if token == "" {
				a.printer.Info("If %s is registered, a reset token has been issued.", email)
				return nil
			}
			a.printer.Info("Reset token (valid for 15 minutes):")
			a.printer.Print("%s", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCmd(a *app) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ws.ResetPassword(cmd.Context(), token, password); err != nil {
				return err
			}
			a.printer.Success("Password has been reset")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token from forgot-password")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.ws.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.Print("%s <%s>", a.printer.Bold(u.Username), u.Email)
			a.printer.Print("%s", a.printer.Dim("server: "+a.server))
			return nil
		},
	}
}
