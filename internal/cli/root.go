// Package cli implements the sprintctl command tree.
//
// Settings come from flags, SPRINTCTL_* environment variables and an
// optional ~/.config/sprintctl/config.yaml, in that order of priority:
//
//	--server        SPRINTCTL_SERVER        API base URL
//	--session-file  SPRINTCTL_SESSION_FILE  where the login token is kept
//	--color         SPRINTCTL_COLOR         auto | always | never
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/sprintium/internal/board"
	"github.com/sakif/sprintium/internal/cli/output"
	"github.com/sakif/sprintium/internal/client"
	"github.com/sakif/sprintium/internal/membership"
	"github.com/sakif/sprintium/internal/session"
	"github.com/sakif/sprintium/internal/workspace"
)

// app is what every command runs against. It is built in
// PersistentPreRunE, after flags are parsed.
type app struct {
	v       *viper.Viper
	printer *output.Printer
	ws      *workspace.Workspace
	server  string
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sprintctl",
		Short: "Sprintium project and issue tracker CLI",
		Long: `sprintctl talks to a Sprintium server.

Example usage:
  sprintctl register --username ana --email ana@x.com --password ...
  sprintctl login --email ana@x.com --password ...
  sprintctl project create --name Website --key WEB
  sprintctl member add <project-id> bo@x.com --role Member
  sprintctl issue create <project-id> --title "Fix login"
  sprintctl issue board <project-id>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(out, errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().String("server", "http://localhost:8080", "Sprintium API base URL")
	root.PersistentFlags().String("session-file", defaultSessionFile(), "file that keeps the login token")
	root.PersistentFlags().String("color", "auto", "color output: auto, always or never")
	root.PersistentFlags().String("config", "", "config file (default is ~/.config/sprintctl/config.yaml)")

	_ = a.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = a.v.BindPFlag("session_file", root.PersistentFlags().Lookup("session-file"))
	_ = a.v.BindPFlag("color", root.PersistentFlags().Lookup("color"))
	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newForgotPasswordCmd(a),
		newResetPasswordCmd(a),
		newWhoamiCmd(a),
		newProjectCmd(a),
		newMemberCmd(a),
		newIssueCmd(a),
	)
	return root
}

// Execute runs sprintctl with the process's arguments and streams.
func Execute() error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	err := root.Execute()
	if err != nil {
		mode, _ := output.ParseColorMode(root.PersistentFlags().Lookup("color").Value.String())
		output.NewPrinter(os.Stdout, os.Stderr, mode).Error("%s", describe(err))
	}
	return err
}

func (a *app) init(out, errOut io.Writer) error {
	v := a.v
	v.SetEnvPrefix("SPRINTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "sprintctl"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	mode, err := output.ParseColorMode(v.GetString("color"))
	if err != nil {
		return err
	}
	a.printer = output.NewPrinter(out, errOut, mode)

	sess, err := session.New(session.WithFile(v.GetString("session_file")))
	if err != nil {
		return err
	}

	a.server = v.GetString("server")
	api := client.New(a.server, sess)
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	a.ws = workspace.New(workspace.Deps{
		Session:  sess,
		API:      api,
		Registry: membership.NewRegistry(api),
		Board:    board.New(api, sess),
	}, logger)
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sprintctl-session.json"
	}
	return filepath.Join(dir, "sprintctl", "session.json")
}
