package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GatingChanged is true when either gating classifier entry changed
	// (name, triggers, endpoint or threshold). The classifiers must be
	// rebuilt from the new config.
	GatingChanged bool

	// OrchestratorChanged is true when the system prompt, temperature,
	// max_tokens or the response voice changed.
	OrchestratorChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.GatingChanged || d.OrchestratorChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !classifierEqual(old.Gating.Actionable, new.Gating.Actionable) ||
		!classifierEqual(old.Gating.Contextable, new.Gating.Contextable) {
		d.GatingChanged = true
	}

	if old.Orchestrator.SystemPrompt != new.Orchestrator.SystemPrompt ||
		old.Orchestrator.Temperature != new.Orchestrator.Temperature ||
		old.Orchestrator.MaxTokens != new.Orchestrator.MaxTokens ||
		old.Orchestrator.Voice != new.Orchestrator.Voice {
		d.OrchestratorChanged = true
	}

	return d
}

// classifierEqual compares two classifier entries field by field.
func classifierEqual(a, b ClassifierEntry) bool {
	return a.Name == b.Name &&
		slices.Equal(a.Triggers, b.Triggers) &&
		a.BaseURL == b.BaseURL &&
		a.PositiveLabel == b.PositiveLabel &&
		a.NegativeLabel == b.NegativeLabel &&
		a.Threshold == b.Threshold
}
