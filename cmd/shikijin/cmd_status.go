package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	shikijin "github.com/shikijin/shikijin-go"
	"github.com/spf13/cobra"
)

var (
	sectionTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	muted        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// newStatusCmd creates the "shikijin status" subcommand.
func newStatusCmd(configPath *string) *cobra.Command {
	var list string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task counts and active leases",
		Long:  "Displays how many tasks are pending, assigned and completed and the\nleases currently held. --list prints the tasks in one state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			if list != "" {
				st, err := shikijin.ParseState(list)
				if err != nil {
					return err
				}
				tasks, err := e.store.ListTasks(ctx, st, nil)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, capNames(t.Requires))
				}
				return nil
			}

			counts := make([]string, 0, len(shikijin.AllStates))
			for _, st := range shikijin.AllStates {
				tasks, err := e.store.ListTasks(ctx, st, nil)
				if err != nil {
					return err
				}
				counts = append(counts, fmt.Sprintf("%-10s %d", st, len(tasks)))
			}
			active, err := e.store.ActiveAssignments(ctx)
			if err != nil {
				return err
			}
			leases := []string{muted.Render("none")}
			if len(active) > 0 {
				leases = leases[:0]
				for _, a := range active {
					exp := "never"
					if !a.ExpiresAt.IsZero() {
						exp = a.ExpiresAt.String()
					}
					leases = append(leases, fmt.Sprintf("%s task=%s worker=%s expires=%s", a.ID, a.TaskID, a.WorkerID, exp))
				}
			}

			out := lipgloss.JoinVertical(lipgloss.Left,
				sectionTitle.Render("Tasks"),
				strings.Join(counts, "\n"),
				"",
				sectionTitle.Render("Leases"),
				strings.Join(leases, "\n"),
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&list, "list", "", "list tasks in this state (pending, assigned, completed)")
	return cmd
}

func capNames(caps []shikijin.Capability) string {
	if len(caps) == 0 {
		return "-"
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}
