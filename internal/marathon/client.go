package marathon

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClientOptions configures the Marathon event stream client.
type ClientOptions struct {
	// Host is the Marathon hostname (e.g. "marathon.mesos").
	Host string

	// Port is the Marathon API port.
	Port int

	// Protocol is "http" or "https".
	Protocol string

	// EventTypes are the event types requested from the stream. The server
	// filters the stream server-side via event_type query parameters.
	EventTypes []string

	// ReconnectInterval is the base interval between reconnection attempts.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the exponential backoff.
	MaxReconnectInterval time.Duration

	// HTTPClient overrides the HTTP client used for the stream request.
	// Must have no overall timeout set, the stream is long-lived.
	HTTPClient *http.Client

	// Logger for the client.
	Logger *zap.Logger
}

// DefaultClientOptions returns default options for the client.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Host:                 "localhost",
		Port:                 8080,
		Protocol:             "http",
		EventTypes:           DefaultEventTypes(),
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: time.Minute,
		Logger:               zap.NewNop(),
	}
}

// Client subscribes to Marathon's /v2/events server-sent event stream and
// dispatches decoded events to per-type handlers. The connection is
// maintained with exponential-backoff reconnection; subscription state is
// reported through Lifecycle callbacks.
type Client struct {
	opts       ClientOptions
	logger     *zap.Logger
	httpClient *http.Client
	streamURL  string

	handlers  map[string]Handler
	lifecycle Lifecycle

	subscribed bool
	stateMu    sync.RWMutex
	reconnects uint64

	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClient creates a client. Handlers and lifecycle callbacks must be
// registered before Subscribe is called.
func NewClient(opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.Host == "" {
		opts.Host = def.Host
	}
	if opts.Port == 0 {
		opts.Port = def.Port
	}
	if opts.Protocol == "" {
		opts.Protocol = def.Protocol
	}
	if len(opts.EventTypes) == 0 {
		opts.EventTypes = def.EventTypes
	}
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = def.ReconnectInterval
	}
	if opts.MaxReconnectInterval == 0 {
		opts.MaxReconnectInterval = def.MaxReconnectInterval
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		opts:       opts,
		logger:     opts.Logger.Named("marathon"),
		httpClient: httpClient,
		streamURL:  buildStreamURL(opts),
		handlers:   make(map[string]Handler),
	}
}

// RegisterHandler registers the handler invoked for events of the given type.
// Exactly one handler per type; a second registration replaces the first.
func (c *Client) RegisterHandler(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// SetLifecycle attaches subscription state callbacks.
func (c *Client) SetLifecycle(l Lifecycle) {
	c.lifecycle = l
}

// Subscribe starts the connection loop. Non-blocking. State changes are
// reported asynchronously via the Lifecycle callbacks.
func (c *Client) Subscribe(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.connectionLoop(runCtx)
}

// Unsubscribe stops the connection loop and waits for it to exit. Idempotent.
func (c *Client) Unsubscribe() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
	})
	c.wg.Wait()
}

// Subscribed reports whether the stream is currently connected.
func (c *Client) Subscribed() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.subscribed
}

// Reconnects returns the number of reconnection attempts since creation.
func (c *Client) Reconnects() uint64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.reconnects
}

// connectionLoop maintains the SSE connection with exponential backoff.
func (c *Client) connectionLoop(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.opts.ReconnectInterval
	first := true

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event stream loop stopping")
			return
		default:
		}

		if !first {
			c.stateMu.Lock()
			c.reconnects++
			c.stateMu.Unlock()
			reconnectsTotal.Inc()
		}
		first = false

		err := c.stream(ctx)
		if c.setSubscribed(false) {
			// The connect succeeded before this disconnect, so start the
			// next retry from the base interval again.
			backoff = c.opts.ReconnectInterval
			connectedGauge.Set(0)
			if c.lifecycle.OnUnsubscribed != nil {
				c.lifecycle.OnUnsubscribed()
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("Event stream disconnected",
				zap.Error(err),
				zap.Duration("retry_in", backoff))
			if c.lifecycle.OnError != nil {
				c.lifecycle.OnError(err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		}
	}
}

// stream opens the SSE request and dispatches frames until the stream ends.
func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL, nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned HTTP %d", resp.StatusCode)
	}

	if c.setSubscribed(true) {
		connectedGauge.Set(1)
		c.logger.Info("Subscribed to event stream", zap.String("url", c.streamURL))
		if c.lifecycle.OnSubscribed != nil {
			c.lifecycle.OnSubscribed()
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventType != "" && data.Len() > 0 {
				c.dispatch(eventType, []byte(data.String()))
			}
			eventType = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Comment lines (":") and unknown fields are ignored per the SSE spec.
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

// dispatch decodes a frame and invokes the registered handler, if any.
// Handler panics or decode failures never tear down the stream.
func (c *Client) dispatch(eventType string, data []byte) {
	handler, ok := c.handlers[eventType]
	if !ok {
		c.logger.Debug("No handler for event type", zap.String("type", eventType))
		return
	}

	evt, err := ParseEvent(eventType, data)
	if err != nil {
		c.logger.Warn("Failed to decode event payload",
			zap.String("type", eventType),
			zap.Error(err))
		if c.lifecycle.OnError != nil {
			c.lifecycle.OnError(fmt.Errorf("decode %s event: %w", eventType, err))
		}
		return
	}

	handler(evt)
}

// setSubscribed updates the connection state. Returns true if the state changed.
func (c *Client) setSubscribed(subscribed bool) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.subscribed == subscribed {
		return false
	}
	c.subscribed = subscribed
	return true
}

// nextBackoff doubles the interval up to the configured maximum.
func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.opts.MaxReconnectInterval {
		return c.opts.MaxReconnectInterval
	}
	return next
}

// buildStreamURL assembles the /v2/events URL with one event_type query
// parameter per subscribed type.
func buildStreamURL(opts ClientOptions) string {
	q := url.Values{}
	for _, et := range opts.EventTypes {
		q.Add("event_type", et)
	}
	u := url.URL{
		Scheme:   opts.Protocol,
		Host:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Path:     "/v2/events",
		RawQuery: q.Encode(),
	}
	return u.String()
}
