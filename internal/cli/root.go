// Package cli implements icalctl, a command-line client for the calendar
// manager.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/tazhate/icalbridge/internal/service"
)

// ManagerFunc returns the calendar manager, building it on first use
type ManagerFunc func(ctx context.Context) (*service.CalendarManager, error)

type options struct {
	manager ManagerFunc
	json    bool
}

func NewRootCommand(manager ManagerFunc) *cobra.Command {
	opts := &options{manager: manager}

	cmd := &cobra.Command{
		Use:   "icalctl",
		Short: "icalctl - calendars and reminders from the command line",
		Long: `icalctl reads and edits the calendars and reminder lists of the
configured store (SQLite or CalDAV).

Configuration comes from the environment, .env and the YAML file named by
ICALBRIDGE_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newCalendarsCmd(opts),
		newListsCmd(opts),
		newEventsCmd(opts),
		newRemindersCmd(opts),
		newRemindCmd(opts),
		newCompleteCmd(opts),
	)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
