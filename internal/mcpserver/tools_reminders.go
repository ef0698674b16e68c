package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/service"
)

func (s *Server) registerReminderTools() {
	s.addTool(mcp.Tool{
		Name:        "list_reminder_lists",
		Description: "List the names of all reminder lists.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.tool("listing reminder lists", false, s.handleListReminderLists))

	s.addTool(mcp.Tool{
		Name:        "list_reminders",
		Description: "List reminders, optionally from one list and filtered by completion.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"list_name": stringProp("Only list reminders of this list"),
				"completed": boolProp("true for completed reminders, false for pending ones, omit for both"),
			},
		},
	}, s.tool("listing reminders", false, s.handleListReminders))

	s.addTool(mcp.Tool{
		Name:        "create_reminder",
		Description: "Create a reminder. Returns its identifier.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: reminderFields(),
			Required:   []string{"title"},
		},
	}, s.tool("creating reminder", true, s.handleCreateReminder))

	update := reminderFields()
	update["reminder_id"] = stringProp("Identifier of the reminder")
	update["is_completed"] = boolProp("Mark the reminder completed or pending")
	s.addTool(mcp.Tool{
		Name:        "update_reminder",
		Description: "Update a reminder. Only the given fields change; pass null to clear an optional field.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: update,
			Required:   []string{"reminder_id"},
		},
	}, s.tool("updating reminder", true, s.handleUpdateReminder))

	s.addTool(mcp.Tool{
		Name:        "delete_reminder",
		Description: "Delete a reminder.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reminder_id": stringProp("Identifier of the reminder"),
			},
			Required: []string{"reminder_id"},
		},
	}, s.tool("deleting reminder", true, s.handleDeleteReminder))
}

func (s *Server) handleListReminderLists(ctx context.Context, m *service.CalendarManager, _ mcp.CallToolRequest) (string, error) {
	names, err := m.ListReminderLists(ctx)
	if err != nil {
		return "", err
	}
	return renderNames("Available reminder lists:", "No reminder lists found", names), nil
}

func (s *Server) handleListReminders(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	completed, err := optionalBool(req.GetArguments(), "completed")
	if err != nil {
		return "", err
	}
	listName := req.GetString("list_name", "")
	reminders, err := m.ListReminders(ctx, listName, completed)
	if err != nil {
		return "", err
	}
	if len(reminders) == 0 {
		return emptyRemindersText(listName, completed), nil
	}
	parts := make([]string, len(reminders))
	for i, r := range reminders {
		parts[i] = RenderReminder(r)
	}
	return strings.Join(parts, "\n"), nil
}

func (s *Server) handleCreateReminder(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	var create domain.CreateReminderRequest
	if err := decodeArgs(req.GetArguments(), "create_reminder_request", m.Location(), &create); err != nil {
		return "", err
	}
	r, err := m.CreateReminder(ctx, &create)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created reminder: %s (ID: %s)", r.Title, r.Identifier), nil
}

func (s *Server) handleUpdateReminder(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("reminder_id")
	if err != nil {
		return "", err
	}
	var update domain.UpdateReminderRequest
	if err := decodeArgs(req.GetArguments(), "update_reminder_request", m.Location(), &update); err != nil {
		return "", err
	}
	r, err := m.UpdateReminder(ctx, id, &update)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully updated reminder: %s", r.Title), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, m *service.CalendarManager, req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("reminder_id")
	if err != nil {
		return "", err
	}
	if err := m.DeleteReminder(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully deleted reminder with ID: %s", id), nil
}
