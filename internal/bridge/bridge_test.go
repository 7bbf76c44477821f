package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marcoreni/marathon-slack/internal/filter"
	"github.com/marcoreni/marathon-slack/internal/marathon"
	"github.com/marcoreni/marathon-slack/internal/slack"
)

// fakeSource captures registrations and lets tests inject events and
// lifecycle signals as the real client would.
type fakeSource struct {
	mu           sync.Mutex
	handlers     map[string]marathon.Handler
	lifecycle    marathon.Lifecycle
	subscribed   bool
	unsubscribed bool
	subscribeCtx context.Context
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]marathon.Handler)}
}

func (f *fakeSource) RegisterHandler(eventType string, h marathon.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventType] = h
}

func (f *fakeSource) SetLifecycle(l marathon.Lifecycle) {
	f.lifecycle = l
}

func (f *fakeSource) Subscribe(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = true
	f.subscribeCtx = ctx
}

func (f *fakeSource) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
}

// emit invokes the registered handler for the event's type, like the real
// client's dispatch.
func (f *fakeSource) emit(t *testing.T, evt marathon.Event) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[evt.Type]
	f.mu.Unlock()
	require.True(t, ok, "no handler registered for %s", evt.Type)
	h(evt)
}

// fakeSender records rendered and sent messages.
type fakeSender struct {
	mu      sync.Mutex
	sent    []slack.Message
	sendErr error
	results chan slack.Result
}

func newFakeSender() *fakeSender {
	return &fakeSender{results: make(chan slack.Result, 16)}
}

func (f *fakeSender) Render(evt marathon.Event) slack.Message {
	return slack.Message{Text: fmt.Sprintf("%s %s", evt.Type, evt.Data.AppID)}
}

func (f *fakeSender) Send(_ context.Context, msg slack.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Results() <-chan slack.Result { return f.results }
func (f *fakeSender) Start(context.Context)        {}
func (f *fakeSender) Close()                       { close(f.results) }

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestBridge(t *testing.T, opts Options) (*Bridge, *fakeSource, *fakeSender) {
	t.Helper()
	source := newFakeSource()
	sender := newFakeSender()
	if opts.DrainWindow == 0 {
		opts.DrainWindow = time.Millisecond
	}
	b := New(source, sender, zap.NewNop(), opts)
	return b, source, sender
}

// drainKinds collects notification kinds from a tap until it closes.
func drainKinds(taps <-chan Notification) <-chan []Kind {
	out := make(chan []Kind, 1)
	go func() {
		var kinds []Kind
		for n := range taps {
			kinds = append(kinds, n.Kind)
		}
		out <- kinds
	}()
	return out
}

func TestBridge_GatePassesMatchingStatusUpdate(t *testing.T) {
	gate := filter.Config{
		AppIDPatterns: filter.Compile([]string{"teamA"}, zap.NewNop()),
		TaskStatuses:  marathon.DefaultTaskStatuses(),
	}
	b, source, sender := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeStatusUpdate},
		Filter:     gate,
	})
	b.Start(context.Background())

	source.emit(t, marathon.Event{
		Type: marathon.EventTypeStatusUpdate,
		Data: marathon.Payload{AppID: "/teamA/service1", TaskStatus: "TASK_RUNNING"},
	})

	require.Equal(t, 1, sender.sentCount())
	assert.Contains(t, sender.sent[0].Text, "/teamA/service1")
	b.Stop()
}

func TestBridge_GateDropsNonMatchingAppID(t *testing.T) {
	gate := filter.Config{
		AppIDPatterns: filter.Compile([]string{"teamA"}, zap.NewNop()),
		TaskStatuses:  marathon.DefaultTaskStatuses(),
	}
	b, source, sender := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeStatusUpdate},
		Filter:     gate,
	})
	b.Start(context.Background())

	source.emit(t, marathon.Event{
		Type: marathon.EventTypeStatusUpdate,
		Data: marathon.Payload{AppID: "/teamB/service1", TaskStatus: "TASK_RUNNING"},
	})

	assert.Equal(t, 0, sender.sentCount())
	b.Stop()
}

func TestBridge_NonStatusEventBypassesStatusGate(t *testing.T) {
	// Empty pattern set and no statuses: deployment events still pass.
	b, source, sender := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeDeploymentSuccess},
	})
	b.Start(context.Background())

	source.emit(t, marathon.Event{
		Type: marathon.EventTypeDeploymentSuccess,
		Data: marathon.Payload{AppID: "/anything"},
	})

	assert.Equal(t, 1, sender.sentCount())
	b.Stop()
}

func TestBridge_DroppedEventStillNotifiedOutward(t *testing.T) {
	gate := filter.Config{
		AppIDPatterns: filter.Compile([]string{"teamA"}, zap.NewNop()),
	}
	b, source, sender := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeDeploymentSuccess},
		Filter:     gate,
	})
	tap := b.Notifications("test")
	kinds := drainKinds(tap)
	b.Start(context.Background())

	source.emit(t, marathon.Event{
		Type: marathon.EventTypeDeploymentSuccess,
		Data: marathon.Payload{AppID: "/teamB/service1"},
	})

	assert.Equal(t, 0, sender.sentCount())
	b.Stop()

	all := <-kinds
	assert.Contains(t, all, KindMarathonEvent)
}

func TestBridge_HealthFollowsSubscriptionSignals(t *testing.T) {
	b, source, _ := newTestBridge(t, Options{})
	b.Start(context.Background())

	assert.Equal(t, http.StatusServiceUnavailable, b.HealthStatus())

	source.lifecycle.OnSubscribed()
	assert.Equal(t, http.StatusOK, b.HealthStatus())

	source.lifecycle.OnUnsubscribed()
	assert.Equal(t, http.StatusServiceUnavailable, b.HealthStatus())

	// Always reflects the most recent signal, for any interleaving.
	source.lifecycle.OnSubscribed()
	source.lifecycle.OnSubscribed()
	assert.Equal(t, http.StatusOK, b.HealthStatus())
	source.lifecycle.OnUnsubscribed()
	assert.Equal(t, http.StatusServiceUnavailable, b.HealthStatus())

	b.Stop()
}

func TestBridge_LifecycleAndResultsBecomeNotifications(t *testing.T) {
	b, source, sender := newTestBridge(t, Options{})
	tap := b.Notifications("test")
	kinds := drainKinds(tap)
	b.Start(context.Background())

	source.lifecycle.OnSubscribed()
	source.lifecycle.OnError(fmt.Errorf("stream hiccup"))
	sender.results <- slack.Result{Kind: slack.ResultSent, Message: "hello"}
	sender.results <- slack.Result{Kind: slack.ResultReply, Message: "ok"}
	sender.results <- slack.Result{Kind: slack.ResultError, Message: "boom"}
	source.lifecycle.OnUnsubscribed()

	b.Stop()

	all := <-kinds
	assert.Contains(t, all, KindSubscribed)
	assert.Contains(t, all, KindUnsubscribed)
	assert.Contains(t, all, KindSentMessage)
	assert.Contains(t, all, KindReceivedReply)
	assert.Contains(t, all, KindError)
}

func TestBridge_NotificationTimestampIsEpochMillis(t *testing.T) {
	b, source, _ := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeDeploymentSuccess},
	})
	tap := b.Notifications("test")
	b.Start(context.Background())

	before := time.Now().UnixMilli()
	source.emit(t, marathon.Event{
		Type: marathon.EventTypeDeploymentSuccess,
		Data: marathon.Payload{AppID: "/a", Raw: []byte(`{"appId":"/a"}`)},
	})
	after := time.Now().UnixMilli()

	n := <-tap
	assert.Equal(t, KindMarathonEvent, n.Kind)
	assert.GreaterOrEqual(t, n.Timestamp, before)
	assert.LessOrEqual(t, n.Timestamp, after)
	assert.JSONEq(t, `{"appId":"/a"}`, string(n.Data))

	b.Stop()
}

func TestBridge_SendFailureBecomesErrorNotification(t *testing.T) {
	b, source, sender := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeDeploymentSuccess},
	})
	sender.sendErr = fmt.Errorf("queue full")
	tap := b.Notifications("test")
	kinds := drainKinds(tap)
	b.Start(context.Background())

	source.emit(t, marathon.Event{
		Type: marathon.EventTypeDeploymentSuccess,
		Data: marathon.Payload{AppID: "/a"},
	})

	b.Stop()

	all := <-kinds
	assert.Contains(t, all, KindError)
}

func TestBridge_StartStopLifecycle(t *testing.T) {
	b, source, _ := newTestBridge(t, Options{})
	b.Start(context.Background())

	source.mu.Lock()
	assert.True(t, source.subscribed)
	// One handler per configured (default) event type.
	assert.Len(t, source.handlers, len(marathon.DefaultEventTypes()))
	source.mu.Unlock()

	b.Stop()
	b.Stop() // idempotent

	source.mu.Lock()
	assert.True(t, source.unsubscribed)
	source.mu.Unlock()
}

func TestBridge_StopRespectsDrainWindow(t *testing.T) {
	b, _, _ := newTestBridge(t, Options{DrainWindow: 50 * time.Millisecond})
	b.Start(context.Background())

	start := time.Now()
	b.Stop()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBridge_SlowTapDropsInsteadOfBlocking(t *testing.T) {
	b, source, _ := newTestBridge(t, Options{
		EventTypes: []string{marathon.EventTypeDeploymentSuccess},
	})
	b.Notifications("never-read")
	b.Start(context.Background())

	// More events than the tap buffer: publishing must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < tapBuffer+10; i++ {
			source.emit(t, marathon.Event{
				Type: marathon.EventTypeDeploymentSuccess,
				Data: marathon.Payload{AppID: "/a"},
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow tap")
	}
	b.Stop()
}
