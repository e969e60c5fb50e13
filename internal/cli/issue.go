package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/sprintium/internal/board"
	"github.com/sakif/sprintium/internal/cli/output"
	"github.com/sakif/sprintium/internal/model"
)

func newIssueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "issue",
		Aliases: []string{"issues", "i"},
		Short:   "Show the board, create and delete issues",
	}

	var title, description, status string
	create := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create an issue (Admin, Member)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := a.ws.CreateIssue(cmd.Context(), args[0], title, description, model.Status(status))
			if err != nil {
				return err
			}
			a.printer.Success("Issue created")
			return a.printBoard(cols)
		},
	}
	create.Flags().StringVar(&title, "title", "", "issue title")
	create.Flags().StringVar(&description, "description", "", "issue description")
	create.Flags().StringVar(&status, "status", string(model.StatusToDo), `"To Do", "In Progress" or "Done"`)
	_ = create.MarkFlagRequired("title")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "board <project-id>",
			Short: "Show issues grouped by status",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cols, err := a.ws.Board(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printBoard(cols)
			},
		},
		create,
		&cobra.Command{
			Use:   "delete <project-id> <issue-id>",
			Short: "Delete an issue (Admin, Member)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cols, err := a.ws.DeleteIssue(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				a.printer.Success("Issue %s deleted", args[1])
				return a.printBoard(cols)
			},
		},
	)
	return cmd
}

// printBoard prints one section per status, in workflow order.
func (a *app) printBoard(cols board.Columns) error {
	for _, status := range model.Statuses() {
		issues := cols[status]
		a.printer.Header(fmt.Sprintf("%s (%d)", a.printer.Status(status), len(issues)))
		if len(issues) == 0 {
			a.printer.Print("%s", a.printer.Dim("  no issues"))
			continue
		}
		table := output.NewTable(a.printer.Out(), []string{"ID", "TITLE", "REPORTER", "ASSIGNEE"})
		for _, is := range issues {
			table.AddRow(is.ID, is.Title, is.Reporter, is.Assignee)
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}
