// Package calendar provides the built-in calendar tool.
//
// The scheduler keeps events in memory for the lifetime of the process. It
// supports creating, listing, updating and deleting events, plus finding free
// slots inside the 09:00-17:00 working window.
//
// All methods are safe for concurrent use.
package calendar

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/types"
)

// Working hours used by find_free_time.
const (
	workStart = "09:00"
	workEnd   = "17:00"
)

// defaultDuration is the event length in minutes when none is given.
const defaultDuration = 60

// Event is one scheduled calendar entry.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
	Duration    int    `json:"duration"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// freeSlot is one available window returned by find_free_time.
type freeSlot struct {
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	DurationAvailable int    `json:"duration_available"`
}

// Scheduler is the calendar tool. Unlike the other builtins it is stateful:
// created events persist across calls.
type Scheduler struct {
	now func() time.Time

	mu     sync.Mutex
	events []Event
}

var _ toolcall.Tool = (*Scheduler)(nil)

// New returns an empty scheduler.
func New() *Scheduler { return &Scheduler{now: time.Now} }

// Definition returns the calendar tool's LLM-facing schema.
func (s *Scheduler) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "calendar_scheduler",
		Description: "Manage calendar events including creating, viewing, updating, and deleting appointments",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"description": "Calendar action to perform",
					"enum": []any{
						"create_event", "list_events", "update_event",
						"delete_event", "find_free_time",
					},
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Event title or name",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Event date in YYYY-MM-DD format",
				},
				"time": map[string]any{
					"type":        "string",
					"description": "Event time in HH:MM format (24-hour)",
				},
				"duration": map[string]any{
					"type":        "integer",
					"description": "Event duration in minutes (default: 60)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Event description or notes",
				},
				"event_id": map[string]any{
					"type":        "string",
					"description": "Event ID for update/delete operations",
				},
				"start_date": map[string]any{
					"type":        "string",
					"description": "Start date for listing events (YYYY-MM-DD)",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "End date for listing events (YYYY-MM-DD)",
				},
			},
			"required": []any{"action"},
		},
	}
}

// Call dispatches on the action parameter.
func (s *Scheduler) Call(_ context.Context, params map[string]any) (string, error) {
	action, _ := params["action"].(string)
	switch action {
	case "create_event":
		return s.createEvent(params)
	case "list_events":
		return s.listEvents(params)
	case "update_event":
		return s.updateEvent(params)
	case "delete_event":
		return s.deleteEvent(params)
	case "find_free_time":
		return s.findFreeTime(params)
	default:
		return "", fmt.Errorf("unknown calendar action: %s", action)
	}
}

func (s *Scheduler) createEvent(params map[string]any) (string, error) {
	title, _ := params["title"].(string)
	date, _ := params["date"].(string)
	at, _ := params["time"].(string)
	description, _ := params["description"].(string)

	if title == "" {
		return "", fmt.Errorf("event title is required")
	}
	if date == "" {
		return "", fmt.Errorf("event date is required")
	}
	if at == "" {
		return "", fmt.Errorf("event time is required")
	}
	if _, err := time.Parse("2006-01-02 15:04", date+" "+at); err != nil {
		return "", fmt.Errorf("invalid date/time format, use YYYY-MM-DD and HH:MM")
	}

	event := Event{
		ID:          newEventID(),
		Title:       title,
		Date:        date,
		Time:        at,
		Duration:    intParam(params, "duration", defaultDuration),
		Description: description,
		CreatedAt:   s.now().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()

	return marshal(map[string]any{
		"action": "create_event",
		"event":  event,
		"message": fmt.Sprintf("Event '%s' scheduled for %s at %s (Duration: %d minutes)",
			title, date, at, event.Duration),
	})
}

func (s *Scheduler) listEvents(params map[string]any) (string, error) {
	startDate, _ := params["start_date"].(string)
	endDate, _ := params["end_date"].(string)

	if startDate == "" {
		startDate = s.now().Format("2006-01-02")
	}
	if endDate == "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return "", fmt.Errorf("invalid start_date, use YYYY-MM-DD")
		}
		endDate = start.AddDate(0, 0, 7).Format("2006-01-02")
	}

	s.mu.Lock()
	filtered := make([]Event, 0)
	for _, e := range s.events {
		if startDate <= e.Date && e.Date <= endDate {
			filtered = append(filtered, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Date != filtered[j].Date {
			return filtered[i].Date < filtered[j].Date
		}
		return filtered[i].Time < filtered[j].Time
	})

	return marshal(map[string]any{
		"action":     "list_events",
		"events":     filtered,
		"count":      len(filtered),
		"date_range": startDate + " to " + endDate,
	})
}

func (s *Scheduler) updateEvent(params map[string]any) (string, error) {
	eventID, _ := params["event_id"].(string)
	if eventID == "" {
		return "", fmt.Errorf("event ID is required for updates")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID != eventID {
			continue
		}
		e := &s.events[i]
		if v, ok := params["title"].(string); ok && v != "" {
			e.Title = v
		}
		if v, ok := params["date"].(string); ok && v != "" {
			e.Date = v
		}
		if v, ok := params["time"].(string); ok && v != "" {
			e.Time = v
		}
		if v, ok := params["description"].(string); ok && v != "" {
			e.Description = v
		}
		if v, ok := params["duration"].(float64); ok && v > 0 {
			e.Duration = int(v)
		}
		return marshal(map[string]any{
			"action":  "update_event",
			"event":   *e,
			"message": fmt.Sprintf("Event '%s' updated successfully", e.Title),
		})
	}
	return "", fmt.Errorf("event with ID %s not found", eventID)
}

func (s *Scheduler) deleteEvent(params map[string]any) (string, error) {
	eventID, _ := params["event_id"].(string)
	if eventID == "" {
		return "", fmt.Errorf("event ID is required for deletion")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.events {
		if e.ID != eventID {
			continue
		}
		s.events = append(s.events[:i], s.events[i+1:]...)
		return marshal(map[string]any{
			"action":        "delete_event",
			"deleted_event": e,
			"message":       fmt.Sprintf("Event '%s' deleted successfully", e.Title),
		})
	}
	return "", fmt.Errorf("event with ID %s not found", eventID)
}

func (s *Scheduler) findFreeTime(params map[string]any) (string, error) {
	date, _ := params["date"].(string)
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	duration := intParam(params, "duration", defaultDuration)

	s.mu.Lock()
	dayEvents := make([]Event, 0)
	for _, e := range s.events {
		if e.Date == date {
			dayEvents = append(dayEvents, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(dayEvents, func(i, j int) bool { return dayEvents[i].Time < dayEvents[j].Time })

	var slots []freeSlot
	current := workStart
	for _, e := range dayEvents {
		if current < e.Time {
			if avail := minutesBetween(current, e.Time); avail >= duration {
				slots = append(slots, freeSlot{
					StartTime:         current,
					EndTime:           e.Time,
					DurationAvailable: avail,
				})
			}
		}
		current = addMinutes(e.Time, e.Duration)
	}
	if current < workEnd {
		if avail := minutesBetween(current, workEnd); avail >= duration {
			slots = append(slots, freeSlot{
				StartTime:         current,
				EndTime:           workEnd,
				DurationAvailable: avail,
			})
		}
	}

	return marshal(map[string]any{
		"action":             "find_free_time",
		"date":               date,
		"requested_duration": duration,
		"free_slots":         slots,
		"message":            fmt.Sprintf("Found %d free time slots on %s", len(slots), date),
	})
}

// minutesBetween returns the whole minutes from one HH:MM time to another.
func minutesBetween(from, to string) int {
	a, errA := time.Parse("15:04", from)
	b, errB := time.Parse("15:04", to)
	if errA != nil || errB != nil {
		return 0
	}
	return int(b.Sub(a).Minutes())
}

// addMinutes advances an HH:MM time by n minutes.
func addMinutes(at string, n int) string {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return at
	}
	return t.Add(time.Duration(n) * time.Minute).Format("15:04")
}

func intParam(params map[string]any, key string, fallback int) int {
	if v, ok := params[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

// newEventID returns a short random identifier, falling back to a timestamp
// when the system entropy source fails.
func newEventID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("e%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func marshal(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
