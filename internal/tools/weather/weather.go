// Package weather provides the built-in weather tool.
//
// The tool returns simulated conditions for any location: current weather, a
// 1-7 day forecast, or an hourly breakdown. It exists so the assistant's
// tool-calling path can be exercised end to end without an external weather
// API; swapping in a live backend only requires replacing [Tool.Call].
//
// The handler is safe for concurrent use. Randomness uses [math/rand/v2]
// with a per-process automatically-seeded source.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/earshot-ai/earshot/internal/toolcall"
	"github.com/earshot-ai/earshot/pkg/types"
)

var conditions = []string{
	"sunny", "cloudy", "rainy", "partly cloudy", "thunderstorm", "snow", "fog",
}

// currentReport is the "current" action's JSON-encoded output.
type currentReport struct {
	Location  string `json:"location"`
	TempC     int    `json:"temperature"`
	Condition string `json:"condition"`
	Humidity  int    `json:"humidity"`
	WindKmh   int    `json:"wind_speed"`
	FeelsLike int    `json:"feels_like"`
	Timestamp string `json:"timestamp"`
	Summary   string `json:"summary"`
}

// dayForecast is one entry of the "forecast" action's output.
type dayForecast struct {
	Day           int    `json:"day"`
	Date          string `json:"date"`
	HighC         int    `json:"high_temp"`
	LowC          int    `json:"low_temp"`
	Condition     string `json:"condition"`
	Precipitation int    `json:"precipitation_chance"`
}

// hourForecast is one entry of the "hourly" action's output.
type hourForecast struct {
	Hour          string `json:"hour"`
	TempC         int    `json:"temperature"`
	Condition     string `json:"condition"`
	Precipitation int    `json:"precipitation_chance"`
}

// Tool is the weather tool.
type Tool struct {
	now func() time.Time
}

var _ toolcall.Tool = (*Tool)(nil)

// New returns the weather tool.
func New() *Tool { return &Tool{now: time.Now} }

// Definition returns the weather tool's LLM-facing schema.
func (t *Tool) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "weather_checker",
		Description: "Get current weather information and forecasts for specified locations",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City name or location (e.g., 'New York', 'London', 'Tokyo')",
				},
				"action": map[string]any{
					"type":        "string",
					"description": "Type of weather information to get",
					"enum":        []any{"current", "forecast", "hourly"},
				},
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days for forecast (1-7, default: 3)",
					"minimum":     1,
					"maximum":     7,
				},
			},
			"required": []any{"location", "action"},
		},
	}
}

// Call dispatches on the action parameter.
func (t *Tool) Call(_ context.Context, params map[string]any) (string, error) {
	location, _ := params["location"].(string)
	action, _ := params["action"].(string)

	days := 3
	if d, ok := params["days"].(float64); ok {
		days = int(d)
	}
	days = min(7, max(1, days))

	switch action {
	case "current":
		temp := randTemp()
		report := currentReport{
			Location:  location,
			TempC:     temp,
			Condition: conditions[rand.IntN(len(conditions))],
			Humidity:  20 + rand.IntN(80),
			WindKmh:   rand.IntN(30),
			FeelsLike: randTemp(),
			Timestamp: t.now().Format(time.RFC3339),
		}
		report.Summary = fmt.Sprintf(
			"Current weather in %s: %d°C, %s, humidity %d%%, wind %d km/h",
			location, report.TempC, report.Condition, report.Humidity, report.WindKmh,
		)
		return marshal(report)

	case "forecast":
		forecast := make([]dayForecast, days)
		for i := range forecast {
			date := t.now().AddDate(0, 0, i)
			forecast[i] = dayForecast{
				Day:           i + 1,
				Date:          date.Format("2006-01-02"),
				HighC:         randTemp(),
				LowC:          -10 + rand.IntN(30),
				Condition:     conditions[rand.IntN(len(conditions))],
				Precipitation: rand.IntN(101),
			}
		}
		return marshal(map[string]any{
			"action":   "forecast",
			"location": location,
			"days":     days,
			"data":     forecast,
			"summary":  fmt.Sprintf("%d-day forecast for %s ready", days, location),
		})

	case "hourly":
		hourly := make([]hourForecast, 24)
		for h := range hourly {
			hourly[h] = hourForecast{
				Hour:          fmt.Sprintf("%02d:00", h),
				TempC:         randTemp(),
				Condition:     conditions[rand.IntN(len(conditions))],
				Precipitation: rand.IntN(101),
			}
		}
		return marshal(map[string]any{
			"action":   "hourly",
			"location": location,
			"data":     hourly,
			"summary":  fmt.Sprintf("24-hour forecast for %s ready", location),
		})

	default:
		return "", fmt.Errorf("unknown weather action: %s", action)
	}
}

// randTemp returns a simulated temperature between -10°C and 39°C.
func randTemp() int {
	return -10 + rand.IntN(50)
}

func marshal(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
