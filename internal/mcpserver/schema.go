package mcpserver

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func minutesProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"description": description,
	}
}

var recurrenceProp = map[string]interface{}{
	"type":        "object",
	"description": "How the item repeats. Give at most one of end_date and occurrence_count.",
	"properties": map[string]interface{}{
		"frequency": map[string]interface{}{
			"type": "string",
			"enum": []string{"DAILY", "WEEKLY", "MONTHLY", "YEARLY"},
		},
		"interval":         map[string]interface{}{"type": "integer", "minimum": 1},
		"end_date":         stringProp("Last possible occurrence (ISO format)"),
		"occurrence_count": map[string]interface{}{"type": "integer", "minimum": 1},
		"days_of_week": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 7},
			"description": "1 = Sunday ... 7 = Saturday",
		},
	},
	"required": []string{"frequency"},
}

var priorityProp = map[string]interface{}{
	"type": "string",
	"enum": []string{"NONE", "HIGH", "MEDIUM", "LOW"},
}

// eventFields are the writable event properties shared by create and update
func eventFields() map[string]interface{} {
	return map[string]interface{}{
		"title":                  stringProp("Event title"),
		"start_time":             stringProp("Start (ISO format, e.g. 2026-05-01T09:00:00)"),
		"end_time":               stringProp("End (ISO format)"),
		"calendar_name":          stringProp("Calendar to use; the default calendar when omitted"),
		"location":               stringProp("Location"),
		"notes":                  stringProp("Notes"),
		"url":                    stringProp("URL"),
		"all_day":                boolProp("Whether the event lasts all day"),
		"alarms_minutes_offsets": minutesProp("Alarms, in minutes before the start"),
		"recurrence_rule":        recurrenceProp,
	}
}

func reminderFields() map[string]interface{} {
	return map[string]interface{}{
		"title":                  stringProp("Reminder title"),
		"list_name":              stringProp("Reminder list; the default list when omitted"),
		"due_date":               stringProp("Due date (ISO format)"),
		"notes":                  stringProp("Notes"),
		"url":                    stringProp("URL"),
		"priority":               priorityProp,
		"alarms_minutes_offsets": minutesProp("Alarms, in minutes before the due date"),
		"recurrence_rule":        recurrenceProp,
	}
}
