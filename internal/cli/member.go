package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/sprintium/internal/permission"
)

func newMemberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members", "m"},
		Short:   "Manage project members (Admin)",
	}

	var addRole string
	add := &cobra.Command{
		Use:   "add <project-id> <email>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := permission.ParseRole(addRole)
			if err != nil {
				return err
			}
			p, err := a.ws.AddMember(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			a.printer.Success("Added %s to %s as %s", args[1], p.Key, a.printer.Role(role))
			return nil
		},
	}
	add.Flags().StringVar(&addRole, "role", string(permission.Member), "Admin, Member or Viewer")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "role <project-id> <email> <role>",
			Short: "Change a member's role",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				role, err := permission.ParseRole(args[2])
				if err != nil {
					return err
				}
				p, err := a.ws.ChangeMemberRole(cmd.Context(), args[0], args[1], role)
				if err != nil {
					return err
				}
				a.printer.Success("%s is now %s in %s", args[1], a.printer.Role(role), p.Key)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <project-id> <email>",
			Short: "Remove a member",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.ws.RemoveMember(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				a.printer.Success("Removed %s from %s", args[1], p.Key)
				return nil
			},
		},
	)
	return cmd
}
