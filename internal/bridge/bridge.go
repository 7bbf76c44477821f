package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marcoreni/marathon-slack/internal/filter"
	"github.com/marcoreni/marathon-slack/internal/marathon"
	"github.com/marcoreni/marathon-slack/internal/slack"
)

const defaultDrainWindow = time.Second

// EventSource is the bus collaborator: the Marathon event stream client.
type EventSource interface {
	RegisterHandler(eventType string, h marathon.Handler)
	SetLifecycle(l marathon.Lifecycle)
	Subscribe(ctx context.Context)
	Unsubscribe()
}

// MessageSender is the delivery collaborator: the Slack webhook sender.
type MessageSender interface {
	Render(evt marathon.Event) slack.Message
	Send(ctx context.Context, msg slack.Message) error
	Results() <-chan slack.Result
	Start(ctx context.Context)
	Close()
}

// Options configures the Bridge.
type Options struct {
	// EventTypes are the event types a handler is registered for.
	EventTypes []string

	// Filter is the combined forwarding gate.
	Filter filter.Config

	// DrainWindow is how long Stop waits for in-flight delivery and the
	// unsubscribe acknowledgement to settle. Default 1s.
	DrainWindow time.Duration
}

// Bridge composes the Marathon client, the filter and the Slack sender.
// It owns the subscription health flag and fans internal events outward as
// notifications for external observers.
type Bridge struct {
	logger *zap.Logger
	source EventSource
	sender MessageSender
	gate   filter.Config
	health *Health

	eventTypes []string
	drain      time.Duration

	taps       []*tap
	tapsClosed bool
	tapsMu     sync.RWMutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Bridge. Handlers are registered and collaborators started
// in Start.
func New(source EventSource, sender MessageSender, logger *zap.Logger, opts Options) *Bridge {
	drain := opts.DrainWindow
	if drain == 0 {
		drain = defaultDrainWindow
	}
	eventTypes := opts.EventTypes
	if len(eventTypes) == 0 {
		eventTypes = marathon.DefaultEventTypes()
	}
	return &Bridge{
		logger:     logger.Named("bridge"),
		source:     source,
		sender:     sender,
		gate:       opts.Filter,
		health:     NewHealth(),
		eventTypes: eventTypes,
		drain:      drain,
	}
}

// HealthStatus returns 200 while subscribed to the event stream and 503
// otherwise. Read by the liveness endpoint.
func (b *Bridge) HealthStatus() int {
	return b.health.Status()
}

// Start wires handlers and lifecycle callbacks, starts the sender and
// issues the subscribe request. Non-blocking; subscription state changes
// arrive via the source's async callbacks.
func (b *Bridge) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.sender.Start(runCtx)

	b.wg.Add(1)
	go b.forwardResults()

	for _, eventType := range b.eventTypes {
		b.source.RegisterHandler(eventType, func(evt marathon.Event) {
			b.handleEvent(runCtx, evt)
		})
	}

	b.source.SetLifecycle(marathon.Lifecycle{
		OnSubscribed:   b.onSubscribed,
		OnUnsubscribed: b.onUnsubscribed,
		OnError:        b.onError,
	})

	b.source.Subscribe(runCtx)
	b.logger.Info("Bridge started", zap.Strings("event_types", b.eventTypes))
}

// Stop unsubscribes from the event stream, waits one bounded drain window
// for in-flight deliveries, then shuts down the sender and closes all
// notification taps. Idempotent.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.logger.Info("Bridge stopping", zap.Duration("drain_window", b.drain))
		b.source.Unsubscribe()
		time.Sleep(b.drain)
		if b.cancel != nil {
			b.cancel()
		}
		b.sender.Close()
		b.wg.Wait()
		b.closeTaps()
	})
}

// handleEvent is the per-event-type handler: it emits the raw event as an
// outward notification unconditionally, applies the combined gate, and on
// pass renders and enqueues the Slack message.
func (b *Bridge) handleEvent(ctx context.Context, evt marathon.Event) {
	eventsReceived.WithLabelValues(evt.Type).Inc()
	b.publish(KindMarathonEvent, evt.Type, evt.Data.Raw)

	if !filter.MatchesAppID(b.gate.AppIDPatterns, evt.Data) {
		eventsDropped.WithLabelValues("app_id").Inc()
		b.logger.Debug("Event dropped by app-id filter",
			zap.String("type", evt.Type),
			zap.String("app_id", evt.Data.AppID))
		return
	}
	if evt.Type == marathon.EventTypeStatusUpdate && !filter.MatchesStatus(b.gate.TaskStatuses, evt.Data) {
		eventsDropped.WithLabelValues("task_status").Inc()
		b.logger.Debug("Event dropped by task-status filter",
			zap.String("task_status", evt.Data.TaskStatus))
		return
	}

	msg := b.sender.Render(evt)
	if err := b.sender.Send(ctx, msg); err != nil {
		b.publish(KindError, err.Error(), nil)
		b.logger.Warn("Failed to enqueue message",
			zap.String("type", evt.Type),
			zap.Error(err))
		return
	}
	eventsForwarded.WithLabelValues(evt.Type).Inc()
}

// forwardResults converts delivery outcomes into outward notifications.
// Exits when the sender closes its results channel.
func (b *Bridge) forwardResults() {
	defer b.wg.Done()
	for r := range b.sender.Results() {
		switch r.Kind {
		case slack.ResultSent:
			b.publish(KindSentMessage, r.Message, nil)
		case slack.ResultReply:
			b.publish(KindReceivedReply, r.Message, nil)
		case slack.ResultError:
			b.publish(KindError, r.Message, nil)
		}
	}
}

func (b *Bridge) onSubscribed() {
	b.health.setAvailable()
	b.publish(KindSubscribed, "subscribed to marathon event stream", nil)
}

func (b *Bridge) onUnsubscribed() {
	b.health.setUnavailable()
	b.publish(KindUnsubscribed, "unsubscribed from marathon event stream", nil)
}

// onError converts collaborator errors into outward notifications; errors
// are reported, never raised.
func (b *Bridge) onError(err error) {
	b.publish(KindError, err.Error(), nil)
}
