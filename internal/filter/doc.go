// Package filter decides, per incoming Marathon event, whether the bridge
// forwards it to Slack.
//
// Two independent predicates make up the gate:
//
//   - app-id matching: configured patterns (compiled case-insensitively)
//     are tried against every app identifier present in the payload (the
//     top-level appId, the apps under currentStep.actions and the apps
//     under plan.steps[*].actions) with the leading path separator
//     stripped first. An empty pattern set disables app-id filtering.
//   - task-status allow-list: applied only to status_update_event. An
//     empty list rejects all status updates (fail closed); every other
//     event type bypasses this check entirely.
//
// Both predicates are pure; Config is immutable after construction.
package filter
