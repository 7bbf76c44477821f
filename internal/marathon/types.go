package marathon

import "encoding/json"

// Event type tags emitted on Marathon's /v2/events stream.
const (
	EventTypeDeploymentInfo        = "deployment_info"
	EventTypeDeploymentSuccess     = "deployment_success"
	EventTypeDeploymentFailed      = "deployment_failed"
	EventTypeDeploymentStepSuccess = "deployment_step_success"
	EventTypeDeploymentStepFailure = "deployment_step_failure"
	EventTypeGroupChangeSuccess    = "group_change_success"
	EventTypeGroupChangeFailed     = "group_change_failed"
	EventTypeFailedHealthCheck     = "failed_health_check_event"
	EventTypeHealthStatusChanged   = "health_status_changed_event"
	EventTypeUnhealthyTaskKill     = "unhealthy_task_kill_event"
	EventTypeStatusUpdate          = "status_update_event"
)

// DefaultEventTypes returns the event types subscribed to when no explicit
// list is configured. Task status updates are opt-in because they are by far
// the noisiest event class.
func DefaultEventTypes() []string {
	return []string{
		EventTypeDeploymentInfo,
		EventTypeDeploymentSuccess,
		EventTypeDeploymentFailed,
		EventTypeDeploymentStepSuccess,
		EventTypeDeploymentStepFailure,
		EventTypeGroupChangeSuccess,
		EventTypeGroupChangeFailed,
		EventTypeFailedHealthCheck,
		EventTypeHealthStatusChanged,
		EventTypeUnhealthyTaskKill,
	}
}

// DefaultTaskStatuses returns the task statuses forwarded when
// status_update_event is subscribed and no explicit allow-list is configured.
func DefaultTaskStatuses() []string {
	return []string{
		"TASK_STAGING",
		"TASK_STARTING",
		"TASK_RUNNING",
		"TASK_FINISHED",
		"TASK_FAILED",
		"TASK_KILLING",
		"TASK_KILLED",
		"TASK_LOST",
	}
}

// Action is a single deployment action targeting one app.
type Action struct {
	Type string `json:"type,omitempty"`
	App  string `json:"app"`
}

// Step groups the actions Marathon performs concurrently during a deployment.
type Step struct {
	Actions []Action `json:"actions"`
}

// Plan is a deployment plan. Only the step/action structure is decoded.
type Plan struct {
	ID    string `json:"id,omitempty"`
	Steps []Step `json:"steps"`
}

// Payload is the decoded body of a Marathon event. Only the fields the
// bridge filters and renders on are decoded; Raw retains the complete JSON.
type Payload struct {
	EventType  string `json:"eventType,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	AppID      string `json:"appId,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
	TaskStatus string `json:"taskStatus,omitempty"`
	Host       string `json:"host,omitempty"`
	Message    string `json:"message,omitempty"`

	CurrentStep *Step `json:"currentStep,omitempty"`
	Plan        *Plan `json:"plan,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Event is one orchestrator lifecycle notification.
type Event struct {
	Type string
	Data Payload
}

// ParseEvent decodes the data frame of an SSE event into an Event,
// retaining the raw JSON for downstream rendering.
func ParseEvent(eventType string, data []byte) (Event, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, err
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return Event{Type: eventType, Data: p}, nil
}

// Handler is invoked for each event of a registered type.
type Handler func(Event)

// Lifecycle carries the subscription state callbacks a consumer can attach
// to the client. Nil callbacks are ignored.
type Lifecycle struct {
	OnSubscribed   func()
	OnUnsubscribed func()
	OnError        func(error)
}
