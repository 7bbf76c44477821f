package slack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marcoreni/marathon-slack/internal/marathon"
)

func newRenderSender(t *testing.T) *Sender {
	t.Helper()
	s, err := NewSender(zap.NewNop(), SenderOptions{
		WebhookURL: "https://hooks.slack.com/services/T000/B000/XXX",
		Channel:    "#deploys",
		BotName:    "Marathon",
		IconURL:    "https://example.com/bot.png",
	})
	require.NoError(t, err)
	return s
}

func TestRender_MessageIdentity(t *testing.T) {
	s := newRenderSender(t)
	msg := s.Render(marathon.Event{
		Type: marathon.EventTypeDeploymentSuccess,
		Data: marathon.Payload{AppID: "/teamA/service1"},
	})

	assert.Equal(t, "Marathon", msg.Username)
	assert.Equal(t, "#deploys", msg.Channel)
	assert.Equal(t, "https://example.com/bot.png", msg.IconURL)
	require.Len(t, msg.Attachments, 1)
}

func TestRender_AttachmentPerEventType(t *testing.T) {
	s := newRenderSender(t)

	tests := []struct {
		eventType string
		data      marathon.Payload
		color     string
		title     string
		contains  string
	}{
		{
			eventType: marathon.EventTypeDeploymentInfo,
			data:      marathon.Payload{AppID: "/teamA/api"},
			color:     colorInfo,
			title:     "Deployment step started",
			contains:  "/teamA/api",
		},
		{
			eventType: marathon.EventTypeDeploymentSuccess,
			data:      marathon.Payload{AppID: "/teamA/api"},
			color:     colorGood,
			title:     "Deployment succeeded",
			contains:  "/teamA/api",
		},
		{
			eventType: marathon.EventTypeDeploymentFailed,
			data:      marathon.Payload{Plan: &marathon.Plan{ID: "deploy-7"}},
			color:     colorDanger,
			title:     "Deployment failed",
			contains:  "deploy-7",
		},
		{
			eventType: marathon.EventTypeDeploymentStepSuccess,
			data: marathon.Payload{
				CurrentStep: &marathon.Step{Actions: []marathon.Action{{App: "/teamA/worker"}}},
			},
			color:    colorGood,
			title:    "Deployment step succeeded",
			contains: "/teamA/worker",
		},
		{
			eventType: marathon.EventTypeDeploymentStepFailure,
			data:      marathon.Payload{AppID: "/teamA/api"},
			color:     colorDanger,
			title:     "Deployment step failed",
			contains:  "/teamA/api",
		},
		{
			eventType: marathon.EventTypeGroupChangeSuccess,
			data:      marathon.Payload{AppID: "/teamA"},
			color:     colorGood,
			title:     "Group change succeeded",
			contains:  "/teamA",
		},
		{
			eventType: marathon.EventTypeGroupChangeFailed,
			data:      marathon.Payload{AppID: "/teamA"},
			color:     colorDanger,
			title:     "Group change failed",
			contains:  "/teamA",
		},
		{
			eventType: marathon.EventTypeFailedHealthCheck,
			data:      marathon.Payload{AppID: "/teamA/api"},
			color:     colorWarning,
			title:     "Health check failed",
			contains:  "/teamA/api",
		},
		{
			eventType: marathon.EventTypeHealthStatusChanged,
			data:      marathon.Payload{AppID: "/teamA/api"},
			color:     colorWarning,
			title:     "Health status changed",
			contains:  "/teamA/api",
		},
		{
			eventType: marathon.EventTypeUnhealthyTaskKill,
			data:      marathon.Payload{AppID: "/teamA/api", TaskID: "api.abc123"},
			color:     colorDanger,
			title:     "Unhealthy task killed",
			contains:  "api.abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			msg := s.Render(marathon.Event{Type: tt.eventType, Data: tt.data})
			require.Len(t, msg.Attachments, 1)
			att := msg.Attachments[0]
			assert.Equal(t, tt.color, att.Color)
			assert.Equal(t, tt.title, att.Title)
			assert.Contains(t, att.Text, tt.contains)
		})
	}
}

func TestRender_StatusUpdateColors(t *testing.T) {
	s := newRenderSender(t)

	tests := []struct {
		status string
		color  string
	}{
		{status: "TASK_RUNNING", color: colorGood},
		{status: "TASK_FINISHED", color: colorGood},
		{status: "TASK_FAILED", color: colorDanger},
		{status: "TASK_KILLED", color: colorDanger},
		{status: "TASK_LOST", color: colorDanger},
		{status: "TASK_STAGING", color: colorWarning},
		{status: "TASK_STARTING", color: colorWarning},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			msg := s.Render(marathon.Event{
				Type: marathon.EventTypeStatusUpdate,
				Data: marathon.Payload{
					AppID:      "/teamA/service1",
					TaskID:     "service1.abc",
					TaskStatus: tt.status,
					Host:       "agent-1",
				},
			})
			att := msg.Attachments[0]
			assert.Equal(t, tt.color, att.Color)
			assert.Contains(t, att.Text, tt.status)
			assert.Contains(t, att.Text, "agent-1")
		})
	}
}

func TestRender_UnknownTypeFallsBackToRaw(t *testing.T) {
	s := newRenderSender(t)
	raw := json.RawMessage(`{"eventType":"api_post_event","clientIp":"10.0.0.1"}`)

	msg := s.Render(marathon.Event{
		Type: "api_post_event",
		Data: marathon.Payload{Raw: raw},
	})

	att := msg.Attachments[0]
	assert.Equal(t, "api_post_event", att.Title)
	assert.Contains(t, att.Text, "clientIp")
}

func TestAffectedApps_DedupesAcrossShapes(t *testing.T) {
	data := marathon.Payload{
		AppID:       "/teamA/api",
		CurrentStep: &marathon.Step{Actions: []marathon.Action{{App: "/teamA/api"}, {App: "/teamA/worker"}}},
		Plan: &marathon.Plan{Steps: []marathon.Step{
			{Actions: []marathon.Action{{App: "/teamA/worker"}, {App: "/teamA/cache"}}},
		}},
	}

	apps := affectedApps(data)
	assert.Equal(t, []string{"/teamA/api", "/teamA/worker", "/teamA/cache"}, apps)
}
