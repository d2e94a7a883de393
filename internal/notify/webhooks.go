package notify

import (
	"encoding/json"
	"fmt"
)

// eventTitle maps events to human headings shared by the chat targets.
func eventTitle(p Payload) string {
	switch p.Event {
	case EventTaskStarted:
		return fmt.Sprintf("Started #%d: %s", p.Issue, p.Title)
	case EventTaskCompleted:
		return fmt.Sprintf("Completed #%d: %s", p.Issue, p.Title)
	case EventTaskFailed:
		return fmt.Sprintf("Failed #%d: %s", p.Issue, p.Title)
	case EventSessionStarted:
		return "Session started"
	case EventSessionEnded:
		return "Session ended"
	default:
		return string(p.Event)
	}
}

func eventColor(p Payload) string {
	switch p.Event {
	case EventTaskCompleted:
		return "#36a64f"
	case EventTaskFailed:
		return "#d00000"
	default:
		return "#439fe0"
	}
}

// buildSlack produces a Slack attachment-style message.
func buildSlack(p Payload) ([]byte, string, error) {
	var fields []map[string]any
	field := func(title string, value any) {
		fields = append(fields, map[string]any{"title": title, "value": fmt.Sprint(value), "short": true})
	}
	if p.Outcome != "" {
		field("Outcome", p.Outcome)
	}
	if p.Reason != "" {
		field("Reason", p.Reason)
	}
	if p.Iterations != 0 {
		field("Iterations", p.Iterations)
	}
	if p.CostUSD != 0 {
		field("Cost", fmt.Sprintf("$%.2f", p.CostUSD))
	}

	msg := map[string]any{
		"attachments": []map[string]any{{
			"color":  eventColor(p),
			"title":  eventTitle(p),
			"fields": fields,
			"footer": "mill",
		}},
	}
	data, err := json.Marshal(msg)
	return data, "application/json", err
}

// buildDiscord produces a Discord embed-style message.
func buildDiscord(p Payload) ([]byte, string, error) {
	var fields []map[string]any
	field := func(name string, value any) {
		fields = append(fields, map[string]any{"name": name, "value": fmt.Sprint(value), "inline": true})
	}
	if p.Outcome != "" {
		field("Outcome", p.Outcome)
	}
	if p.Reason != "" {
		field("Reason", p.Reason)
	}
	if p.Iterations != 0 {
		field("Iterations", p.Iterations)
	}
	if p.CostUSD != 0 {
		field("Cost", fmt.Sprintf("$%.2f", p.CostUSD))
	}

	color := 0x439fe0
	switch p.Event {
	case EventTaskCompleted:
		color = 0x36a64f
	case EventTaskFailed:
		color = 0xd00000
	}

	msg := map[string]any{
		"embeds": []map[string]any{{
			"title":  eventTitle(p),
			"color":  color,
			"fields": fields,
			"footer": map[string]any{"text": "mill"},
		}},
	}
	data, err := json.Marshal(msg)
	return data, "application/json", err
}
