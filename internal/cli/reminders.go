package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tazhate/icalbridge/internal/domain"
)

func newRemindersCmd(opts *options) *cobra.Command {
	var (
		list      string
		completed bool
	)

	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List reminders",
		Long: `List reminders of every list, or of one with --list. Pass
--completed=true or --completed=false to keep only reminders in that state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			var filter *bool
			if cmd.Flags().Changed("completed") {
				filter = &completed
			}

			reminders, err := m.ListReminders(cmd.Context(), list, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				if reminders == nil {
					reminders = []*domain.Reminder{}
				}
				return writeJSON(out, reminders)
			}
			if len(reminders) == 0 {
				fmt.Fprintln(out, "No reminders found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DONE\tDUE\tPRIORITY\tTITLE\tLIST\tID")
			for _, r := range reminders {
				done := " "
				if r.IsCompleted {
					done = "x"
				}
				due := "-"
				if r.DueDate != nil {
					due = r.DueDate.In(m.Location()).Format(timeLayout)
				}
				fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\t%s\t%s\n", done, due, r.Priority, r.Title, r.ListName, r.Identifier)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&list, "list", "", "Only list reminders of this list")
	cmd.Flags().BoolVar(&completed, "completed", false, "Keep only completed (true) or pending (false) reminders")
	return cmd
}

func newRemindCmd(opts *options) *cobra.Command {
	var list, due, priority string

	cmd := &cobra.Command{
		Use:   "remind <title>",
		Short: "Create a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			req := &domain.CreateReminderRequest{Title: args[0], ListName: list}
			if due != "" {
				t, err := domain.ParseTime(due, m.Location())
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				req.DueDate = &t
			}
			if priority != "" {
				if req.Priority, err = domain.ParsePriority(priority); err != nil {
					return fmt.Errorf("--priority: %w", err)
				}
			}

			r, err := m.CreateReminder(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully created reminder: %s (ID: %s)\n", r.Title, r.Identifier)
			return nil
		},
	}

	cmd.Flags().StringVar(&list, "list", "", "Reminder list (default: the store's default list)")
	cmd.Flags().StringVar(&due, "due", "", "Due date, ISO 8601")
	cmd.Flags().StringVar(&priority, "priority", "", "NONE, HIGH, MEDIUM or LOW")
	return cmd
}

func newCompleteCmd(opts *options) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete <reminder-id>",
		Short: "Mark a reminder completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			r, err := m.UpdateReminder(cmd.Context(), args[0], &domain.UpdateReminderRequest{IsCompleted: domain.Some(!undo)})
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated reminder: %s\n", r.Title)
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the reminder pending again")
	return cmd
}
