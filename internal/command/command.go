// Package command implements keyword detection on final transcripts for
// voice shortcuts. It checks transcripts against a set of regex patterns and
// executes the corresponding session actions when one matches, before the
// utterance reaches the gating pipeline.
//
// Speech recognition mangles command words often enough that exact regex
// matching misses real commands; the [phonetic] matcher catches "recent
// memory" or "reset memories" where the regex would not.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/earshot-ai/earshot/internal/command/phonetic"
	"github.com/earshot-ai/earshot/internal/session"
)

// Pattern pairs a compiled regex with the action to execute when it matches.
type Pattern struct {
	// Regex is the compiled pattern. Positional groups are passed to Action
	// as matches[1], matches[2], etc.
	Regex *regexp.Regexp

	// Name is a human-readable label for logging.
	Name string

	// Phrase is the canonical spoken form, used for phonetic fallback
	// matching when the regex misses. Empty disables the fallback.
	Phrase string

	// Action executes the voice command using the matched groups.
	Action func(ctx context.Context, sess *session.Session, matches []string) (string, error)
}

// Filter checks final transcripts against a set of patterns and executes
// matching voice commands against the session.
//
// All methods are safe for concurrent use; Filter is stateless apart from
// its configuration.
type Filter struct {
	patterns []Pattern
	matcher  *phonetic.Matcher
	logger   *slog.Logger
}

// New creates a Filter with the built-in command set.
func New() *Filter {
	return &Filter{
		patterns: defaultPatterns(),
		matcher:  phonetic.New(),
		logger:   slog.Default(),
	}
}

// Check tests whether text matches a voice command pattern. If a match is
// found, the corresponding action is executed against sess and Check returns
// (spokenReply, true, nil). If no pattern matches, it returns ("", false,
// nil). Errors from action execution are returned as ("", true, err).
func (f *Filter) Check(ctx context.Context, sess *session.Session, text string) (string, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false, nil
	}

	for _, p := range f.patterns {
		matches := p.Regex.FindStringSubmatch(trimmed)
		if matches == nil && phoneticEligible(trimmed, p.Phrase) {
			if _, _, ok := f.matcher.Match(trimmed, []string{p.Phrase}); ok {
				matches = []string{trimmed}
			}
		}
		if matches == nil {
			continue
		}

		reply, err := p.Action(ctx, sess, matches)
		if err != nil {
			f.logger.Warn("voice command failed",
				"pattern", p.Name,
				"text", trimmed,
				"error", err,
			)
			return "", true, fmt.Errorf("voice command %s: %w", p.Name, err)
		}

		f.logger.Info("voice command executed",
			"pattern", p.Name,
			"text", trimmed,
		)
		return reply, true, nil
	}

	return "", false, nil
}

// phoneticEligible reports whether text is short enough to plausibly be the
// command phrase itself. The phonetic matcher scores individual token pairs,
// so without a length bound any sentence containing one command word would
// match.
func phoneticEligible(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return len(strings.Fields(text)) <= len(strings.Fields(phrase))+1
}

// defaultPatterns returns the built-in voice command set.
func defaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:   "reset-memory",
			Regex:  regexp.MustCompile(`(?i)^reset\s+(the\s+)?memory[.!]?$`),
			Phrase: "reset memory",
			Action: func(ctx context.Context, sess *session.Session, _ []string) (string, error) {
				if mem := sess.Memory(); mem != nil {
					if err := mem.Reset(ctx); err != nil {
						return "", err
					}
				}
				return "Conversation memory has been reset.", nil
			},
		},
		{
			Name:   "stop-listening",
			Regex:  regexp.MustCompile(`(?i)^stop\s+listening[.!]?$`),
			Phrase: "stop listening",
			Action: func(_ context.Context, sess *session.Session, _ []string) (string, error) {
				sess.Close()
				return "Goodbye.", nil
			},
		},
	}
}
