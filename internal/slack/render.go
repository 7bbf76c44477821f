package slack

import (
	"fmt"
	"strings"

	api "github.com/slack-go/slack"

	"github.com/marcoreni/marathon-slack/internal/marathon"
)

// Message is the webhook payload delivered to Slack.
type Message = api.WebhookMessage

// Attachment colors. "good" and "danger" are Slack's named colors.
const (
	colorGood    = "good"
	colorDanger  = "danger"
	colorWarning = "warning"
	colorInfo    = "#439FE0"
)

// Render formats a Marathon event as a Slack webhook message with a single
// attachment. Unknown event types fall back to a raw-payload rendering so
// an expanded EVENT_TYPES configuration never produces empty messages.
func (s *Sender) Render(evt marathon.Event) Message {
	return Message{
		Username:    s.opts.BotName,
		Channel:     s.opts.Channel,
		IconURL:     s.opts.IconURL,
		Attachments: []api.Attachment{renderAttachment(evt)},
	}
}

func renderAttachment(evt marathon.Event) api.Attachment {
	data := evt.Data
	switch evt.Type {
	case marathon.EventTypeDeploymentInfo:
		return api.Attachment{
			Color: colorInfo,
			Title: "Deployment step started",
			Text:  deploymentText(data),
		}
	case marathon.EventTypeDeploymentSuccess:
		return api.Attachment{
			Color: colorGood,
			Title: "Deployment succeeded",
			Text:  deploymentText(data),
		}
	case marathon.EventTypeDeploymentFailed:
		return api.Attachment{
			Color: colorDanger,
			Title: "Deployment failed",
			Text:  deploymentText(data),
		}
	case marathon.EventTypeDeploymentStepSuccess:
		return api.Attachment{
			Color: colorGood,
			Title: "Deployment step succeeded",
			Text:  deploymentText(data),
		}
	case marathon.EventTypeDeploymentStepFailure:
		return api.Attachment{
			Color: colorDanger,
			Title: "Deployment step failed",
			Text:  deploymentText(data),
		}
	case marathon.EventTypeGroupChangeSuccess:
		return api.Attachment{
			Color: colorGood,
			Title: "Group change succeeded",
			Text:  fmt.Sprintf("Group `%s` was changed.", orUnknown(data.AppID)),
		}
	case marathon.EventTypeGroupChangeFailed:
		return api.Attachment{
			Color: colorDanger,
			Title: "Group change failed",
			Text:  fmt.Sprintf("Changing group `%s` failed.", orUnknown(data.AppID)),
		}
	case marathon.EventTypeFailedHealthCheck:
		return api.Attachment{
			Color: colorWarning,
			Title: "Health check failed",
			Text:  fmt.Sprintf("App `%s` failed a health check.", orUnknown(data.AppID)),
		}
	case marathon.EventTypeHealthStatusChanged:
		return api.Attachment{
			Color: colorWarning,
			Title: "Health status changed",
			Text:  fmt.Sprintf("Health status of app `%s` changed.", orUnknown(data.AppID)),
		}
	case marathon.EventTypeUnhealthyTaskKill:
		return api.Attachment{
			Color: colorDanger,
			Title: "Unhealthy task killed",
			Text:  fmt.Sprintf("Task `%s` of app `%s` was killed for failing health checks.", orUnknown(data.TaskID), orUnknown(data.AppID)),
		}
	case marathon.EventTypeStatusUpdate:
		return api.Attachment{
			Color: statusColor(data.TaskStatus),
			Title: "Task status update",
			Text:  statusText(data),
		}
	default:
		return api.Attachment{
			Color: colorInfo,
			Title: evt.Type,
			Text:  fmt.Sprintf("```%s```", string(data.Raw)),
		}
	}
}

// deploymentText names the apps a deployment event touches, falling back to
// the plan ID when the payload carries no app identifiers.
func deploymentText(data marathon.Payload) string {
	apps := affectedApps(data)
	if len(apps) == 0 {
		if data.Plan != nil && data.Plan.ID != "" {
			return fmt.Sprintf("Deployment `%s`.", data.Plan.ID)
		}
		return "Deployment event received."
	}
	return fmt.Sprintf("Affected apps: `%s`.", strings.Join(apps, "`, `"))
}

// affectedApps collects the distinct app identifiers across all payload
// shapes, preserving first-seen order.
func affectedApps(data marathon.Payload) []string {
	var apps []string
	seen := make(map[string]struct{})
	add := func(app string) {
		if app == "" {
			return
		}
		if _, ok := seen[app]; ok {
			return
		}
		seen[app] = struct{}{}
		apps = append(apps, app)
	}

	add(data.AppID)
	if data.CurrentStep != nil {
		for _, a := range data.CurrentStep.Actions {
			add(a.App)
		}
	}
	if data.Plan != nil {
		for _, step := range data.Plan.Steps {
			for _, a := range step.Actions {
				add(a.App)
			}
		}
	}
	return apps
}

func statusText(data marathon.Payload) string {
	text := fmt.Sprintf("Task `%s` of app `%s` is now `%s`",
		orUnknown(data.TaskID), orUnknown(data.AppID), orUnknown(data.TaskStatus))
	if data.Host != "" {
		text += fmt.Sprintf(" on `%s`", data.Host)
	}
	return text + "."
}

func statusColor(status string) string {
	switch status {
	case "TASK_RUNNING", "TASK_FINISHED":
		return colorGood
	case "TASK_FAILED", "TASK_KILLED", "TASK_LOST", "TASK_ERROR":
		return colorDanger
	default:
		return colorWarning
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
