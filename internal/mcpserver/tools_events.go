package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/service"
)

func (s *Server) registerEventTools() {
	s.addTool(mcp.Tool{
		Name:        "list_calendars",
		Description: "List the names of all event calendars.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.tool("listing calendars", false, s.handleListCalendars))

	s.addTool(mcp.Tool{
		Name:        "create_calendar",
		Description: "Create an event calendar. The source defaults to the configured one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":        stringProp("Calendar name"),
				"source_name": stringProp("Account that will own the calendar, e.g. iCloud or Local"),
			},
			Required: []string{"name"},
		},
	}, s.tool("creating calendar", true, s.handleCreateCalendar))

	s.addTool(mcp.Tool{
		Name:        "list_events",
		Description: "List event occurrences between two dates, optionally in one calendar.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"start_date":    stringProp("Window start (ISO format)"),
				"end_date":      stringProp("Window end (ISO format)"),
				"calendar_name": stringProp("Only list events of this calendar"),
			},
			Required: []string{"start_date", "end_date"},
		},
	}, s.tool("listing events", false, s.handleListEvents))

	s.addTool(mcp.Tool{
		Name:        "create_event",
		Description: "Create a calendar event. Returns its identifier.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: eventFields(),
			Required:   []string{"title", "start_time", "end_time"},
		},
	}, s.tool("creating event", true, s.handleCreateEvent))

	update := eventFields()
	update["event_id"] = stringProp("Identifier of the event")
	update["occurrence_date"] = stringProp("Start of the occurrence to change; changes this and later occurrences of a series")
	s.addTool(mcp.Tool{
		Name: "update_event",
		Description: "Update an event. Only the given fields change; pass null to clear an optional field. " +
			"On a recurring event the change applies to the whole series unless occurrence_date is given.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: update,
			Required:   []string{"event_id"},
		},
	}, s.tool("updating event", true, s.handleUpdateEvent))

	s.addTool(mcp.Tool{
		Name:        "delete_event",
		Description: "Delete an event, or one occurrence onwards when occurrence_date is given.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"event_id":        stringProp("Identifier of the event"),
				"occurrence_date": stringProp("Start of the first occurrence to delete"),
			},
			Required: []string{"event_id"},
		},
	}, s.tool("deleting event", true, s.handleDeleteEvent))
}

func (s *Server) handleListCalendars(ctx context.Context, m *service.CalendarManager, _ mcp.CallToolRequest) (string, error) {
	names, err := m.ListCalendarNames(ctx)
	if err != nil {
		return "", err
	}
	return renderNames("Available calendars:", "No calendars found", names), nil
}

func (s *Server) handleCreateCalendar(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return "", err
	}
	cal, err := m.CreateCalendar(ctx, name, req.GetString("source_name", ""))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created calendar: %s (ID: %s)", cal.Title, cal.Identifier), nil
}

func (s *Server) handleListEvents(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	args := req.GetArguments()
	start, err := requiredTime(args, "start_date", m.Location())
	if err != nil {
		return "", err
	}
	end, err := requiredTime(args, "end_date", m.Location())
	if err != nil {
		return "", err
	}
	events, err := m.ListEvents(ctx, start, end, req.GetString("calendar_name", ""))
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "No events found in the specified date range", nil
	}
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = RenderEvent(ev)
	}
	return strings.Join(parts, "\n"), nil
}

func (s *Server) handleCreateEvent(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	var create domain.CreateEventRequest
	if err := decodeArgs(req.GetArguments(), "create_event_request", m.Location(), &create); err != nil {
		return "", err
	}
	ev, err := m.CreateEvent(ctx, &create)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created event: %s (ID: %s)", ev.Title, ev.Identifier), nil
}

func (s *Server) handleUpdateEvent(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("event_id")
	if err != nil {
		return "", err
	}
	args := req.GetArguments()
	occurrence, err := optionalTime(args, "occurrence_date", m.Location())
	if err != nil {
		return "", err
	}
	var update domain.UpdateEventRequest
	if err := decodeArgs(args, "update_event_request", m.Location(), &update); err != nil {
		return "", err
	}

	var ev *domain.Event
	if occurrence != nil {
		ev, err = m.UpdateEventOccurrence(ctx, id, *occurrence, &update)
	} else {
		ev, err = m.UpdateEvent(ctx, id, &update)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully updated event: %s", ev.Title), nil
}

func (s *Server) handleDeleteEvent(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("event_id")
	if err != nil {
		return "", err
	}
	occurrence, err := optionalTime(req.GetArguments(), "occurrence_date", m.Location())
	if err != nil {
		return "", err
	}
	if occurrence != nil {
		err = m.DeleteEventOccurrence(ctx, id, *occurrence)
	} else {
		err = m.DeleteEvent(ctx, id)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully deleted event with ID: %s", id), nil
}
