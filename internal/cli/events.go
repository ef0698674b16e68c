package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/icalbridge/internal/domain"
)

const timeLayout = "2006-01-02 15:04"

func newEventsCmd(opts *options) *cobra.Command {
	var from, to, calendar string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List event occurrences in a time window",
		Long: `List event occurrences overlapping a window. The window starts today
and spans a week unless --from and --to say otherwise. Times are ISO 8601;
values without an offset are read in the configured timezone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(cmd.Context())
			if err != nil {
				return err
			}
			loc := m.Location()

			y, mo, d := time.Now().In(loc).Date()
			start := time.Date(y, mo, d, 0, 0, 0, 0, loc)
			if from != "" {
				if start, err = domain.ParseTime(from, loc); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			end := start.AddDate(0, 0, 7)
			if to != "" {
				if end, err = domain.ParseTime(to, loc); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			events, err := m.ListEvents(cmd.Context(), start, end, calendar)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No events found in the specified date range")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "START\tEND\tTITLE\tCALENDAR\tID")
			for _, ev := range events {
				startText, endText := ev.StartTime.In(loc).Format(timeLayout), ev.EndTime.In(loc).Format(timeLayout)
				if ev.AllDay {
					startText, endText = ev.StartTime.In(loc).Format(time.DateOnly), "all day"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", startText, endText, ev.Title, ev.CalendarName, ev.Identifier)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Window start (default: start of today)")
	cmd.Flags().StringVar(&to, "to", "", "Window end (default: a week after the start)")
	cmd.Flags().StringVar(&calendar, "calendar", "", "Only list events of this calendar")
	return cmd
}
