package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCalendarsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List event calendars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			cals, err := m.ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, cals)
			}
			if len(cals) == 0 {
				fmt.Fprintln(out, "No calendars found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tSOURCE\tID")
			for _, c := range cals {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Title, c.SourceTitle, c.Identifier)
			}
			return w.Flush()
		},
	}
}

func newListsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "List reminder lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			names, err := m.ListReminderLists(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				if names == nil {
					names = []string{}
				}
				return writeJSON(out, names)
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No reminder lists found")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
}
