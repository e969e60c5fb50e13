package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/sprintium/internal/cli/output"
	"github.com/sakif/sprintium/internal/client"
	"github.com/sakif/sprintium/internal/model"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "List, create, show, edit and delete projects",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List your projects",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ps, err := a.ws.Projects(cmd.Context())
				if err != nil {
					return err
				}
				return a.printProjects(ps)
			},
		},
		newProjectCreateCmd(a),
		&cobra.Command{
			Use:   "show <project-id>",
			Short: "Show a project and its members",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.ws.OpenProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printProject(p)
			},
		},
		newProjectEditCmd(a),
		&cobra.Command{
			Use:   "delete <project-id>",
			Short: "Delete a project with all its issues (Admin)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := a.ws.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printer.Success("Project %s deleted", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newProjectCreateCmd(a *app) *cobra.Command {
	var in client.ProjectInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project; you become its Admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.ws.CreateProject(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printer.Success("Created project %s (%s)", p.Key, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringVar(&in.Key, "key", "", "short unique key, 2 to 10 letters or digits")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Type, "type", "software", "software or service")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newProjectEditCmd(a *app) *cobra.Command {
	var name, description, typ string
	cmd := &cobra.Command{
		Use:   "edit <project-id>",
		Short: "Rename, re-describe or retype a project (Admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := a.ws.OpenProject(ctx, args[0])
			if err != nil {
				return err
			}

			in := client.ProjectInput{
				Name:        current.Name,
				Description: current.Description,
				Type:        string(current.Type),
			}
			if cmd.Flags().Changed("name") {
				in.Name = name
			}
			if cmd.Flags().Changed("description") {
				in.Description = description
			}
			if cmd.Flags().Changed("type") {
				in.Type = typ
			}

			p, err := a.ws.EditProject(ctx, args[0], in)
			if err != nil {
				return err
			}
			a.printer.Success("Updated project %s", p.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&typ, "type", "", "software or service")
	return cmd
}

func (a *app) printProjects(ps []model.Project) error {
	if len(ps) == 0 {
		a.printer.Info("You are not a member of any project yet.")
		return nil
	}
	table := output.NewTable(a.printer.Out(), []string{"ID", "KEY", "NAME", "TYPE", "ROLE"})
	for _, p := range ps {
		table.AddRow(p.ID, a.printer.Bold(p.Key), p.Name, string(p.Type), a.printer.Role(p.CurrentUserRole))
	}
	return table.Render()
}

func (a *app) printProject(p *model.Project) error {
	a.printer.Header(p.Key + "  " + p.Name)
	a.printer.Print("ID:     %s", p.ID)
	a.printer.Print("Type:   %s", p.Type)
	a.printer.Print("Owner:  %s", p.Owner)
	if p.CurrentUserRole != "" {
		a.printer.Print("Role:   %s", a.printer.Role(p.CurrentUserRole))
	}
	if p.Description != "" {
		a.printer.Print("\n%s", p.Description)
	}

	a.printer.Header("Members")
	table := output.NewTable(a.printer.Out(), []string{"EMAIL", "ROLE"})
	for _, m := range p.Members {
		table.AddRow(m.Email, a.printer.Role(m.Role))
	}
	return table.Render()
}
