package filter

import (
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/marcoreni/marathon-slack/internal/marathon"
)

// Config is the immutable gate configuration, built once at startup.
type Config struct {
	// AppIDPatterns match against app identifiers anywhere in the event
	// payload. Empty means no app-id filtering.
	AppIDPatterns []*regexp.Regexp

	// TaskStatuses is the allow-list applied to status_update_event.
	// Empty means no status update passes.
	TaskStatuses []string
}

// Compile compiles user-supplied app-id patterns case-insensitively.
// Invalid patterns are logged and dropped rather than aborting startup,
// which degrades filtering toward more permissive.
func Compile(patterns []string, logger *zap.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logger.Warn("Invalid app-id pattern, skipping",
				zap.String("pattern", p),
				zap.Error(err))
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// MatchesAppID reports whether any pattern matches any app identifier in the
// payload: the top-level appId, any currentStep action app, or any plan step
// action app. Identifiers have their leading path separator stripped before
// matching. An empty pattern set matches everything.
func MatchesAppID(patterns []*regexp.Regexp, data marathon.Payload) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, re := range patterns {
		if matchesAnyApp(re, data) {
			return true
		}
	}
	return false
}

// matchesAnyApp checks one pattern against every app identifier present in
// the payload, OR across all sources.
func matchesAnyApp(re *regexp.Regexp, data marathon.Payload) bool {
	if data.AppID != "" && re.MatchString(stripSeparator(data.AppID)) {
		return true
	}
	if data.CurrentStep != nil {
		for _, a := range data.CurrentStep.Actions {
			if a.App != "" && re.MatchString(stripSeparator(a.App)) {
				return true
			}
		}
	}
	if data.Plan != nil {
		for _, step := range data.Plan.Steps {
			for _, a := range step.Actions {
				if a.App != "" && re.MatchString(stripSeparator(a.App)) {
					return true
				}
			}
		}
	}
	return false
}

// MatchesStatus reports whether the payload's task status is in the
// allow-list. An empty allow-list fails closed.
func MatchesStatus(allowed []string, data marathon.Payload) bool {
	if len(allowed) == 0 {
		return false
	}
	return slices.Contains(allowed, data.TaskStatus)
}

// Allows is the combined forwarding gate: the app-id filter applies to every
// event, the status allow-list only to status_update_event.
func (c Config) Allows(evt marathon.Event) bool {
	if !MatchesAppID(c.AppIDPatterns, evt.Data) {
		return false
	}
	if evt.Type == marathon.EventTypeStatusUpdate {
		return MatchesStatus(c.TaskStatuses, evt.Data)
	}
	return true
}

// stripSeparator removes the leading path separator from an app identifier
// so patterns match "group/app" rather than "/group/app".
func stripSeparator(appID string) string {
	return strings.TrimPrefix(appID, "/")
}
