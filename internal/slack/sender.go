package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultWorkers    = 2
	defaultBufferSize = 100
	defaultPerSecond  = 1 // Slack incoming webhooks allow roughly one message per second
	maxRetries        = 2
	maxReplyBytes     = 1 << 10
	userAgent         = "marathon-slack/v1"
)

// ResultKind classifies a delivery outcome.
type ResultKind string

const (
	// ResultSent means the message was delivered to the webhook.
	ResultSent ResultKind = "sent"
	// ResultReply carries the webhook's response body (normally "ok").
	ResultReply ResultKind = "reply"
	// ResultError means delivery failed after all retries.
	ResultError ResultKind = "error"
)

// Result is an asynchronous delivery outcome.
type Result struct {
	Kind    ResultKind
	Message string
	Err     error
}

// SenderOptions configures the Sender.
type SenderOptions struct {
	// WebhookURL is the Slack incoming webhook endpoint. Required.
	WebhookURL string

	// Channel overrides the webhook's default channel when non-empty.
	Channel string

	// BotName is the username messages are posted as.
	BotName string

	// IconURL is the bot avatar image.
	IconURL string

	// Timeout bounds each delivery HTTP request.
	Timeout time.Duration

	// PerSecond paces deliveries to respect the webhook rate limit.
	PerSecond float64

	// BufferSize is the send queue depth. Full-queue sends are dropped.
	BufferSize int

	// Workers is the number of delivery goroutines.
	Workers int
}

// work is an internal message sent to the worker pool.
type work struct {
	ctx context.Context
	msg Message
}

// Sender delivers rendered messages to a Slack incoming webhook through a
// buffered worker pool. Delivery outcomes are reported on Results rather
// than returned to the producer, so event handling never blocks on Slack.
type Sender struct {
	httpClient *http.Client
	logger     *zap.Logger
	opts       SenderOptions
	limiter    *rate.Limiter
	sendCh     chan work
	results    chan Result
	wg         sync.WaitGroup
}

// NewSender creates a Sender. Returns an error if the webhook URL is invalid.
func NewSender(logger *zap.Logger, opts SenderOptions) (*Sender, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}
	u, err := url.Parse(opts.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid slack webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("slack webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("slack webhook URL must include a host")
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PerSecond == 0 {
		opts.PerSecond = defaultPerSecond
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Workers == 0 {
		opts.Workers = defaultWorkers
	}

	return &Sender{
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.Named("slack-sender"),
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.PerSecond), 1),
		sendCh:     make(chan work, opts.BufferSize),
		results:    make(chan Result, opts.BufferSize),
	}, nil
}

// Start launches the delivery workers. Non-blocking.
func (s *Sender) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.logger.Info("Slack sender started",
		zap.String("url", RedactURL(s.opts.WebhookURL)),
		zap.Int("workers", s.opts.Workers),
		zap.Float64("per_second", s.opts.PerSecond),
	)
}

// Close waits for workers to finish draining queued messages, then closes
// the results channel. Call after the context passed to Start is cancelled.
func (s *Sender) Close() {
	s.wg.Wait()
	close(s.results)
}

// Results returns the delivery outcome channel. Closed by Close.
func (s *Sender) Results() <-chan Result {
	return s.results
}

// Send enqueues a message for async delivery. Never blocks: a full queue
// drops the message and returns an error.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	select {
	case s.sendCh <- work{ctx: ctx, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		sendTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn("Slack send buffer full, dropping message")
		return fmt.Errorf("slack send buffer full")
	}
}

// worker drains the send channel and delivers messages. On context
// cancellation it drains remaining buffered items before exiting.
func (s *Sender) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain remaining buffered items before exiting; deliver
			// substitutes a bounded context for the expired one.
			for {
				select {
				case w := <-s.sendCh:
					s.deliver(w.ctx, w.msg)
				default:
					return
				}
			}
		case w, ok := <-s.sendCh:
			if !ok {
				return
			}
			s.deliver(w.ctx, w.msg)
		}
	}
}

// deliver performs one delivery with retries and publishes the outcome.
// A message whose producer context already expired (shutdown) still gets
// one bounded delivery attempt so queued messages are not lost.
func (s *Sender) deliver(ctx context.Context, msg Message) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
	}
	reply, err := s.doSend(ctx, msg)
	if err != nil {
		s.logger.Error("Slack send failed",
			zap.String("url", RedactURL(s.opts.WebhookURL)),
			zap.Error(err),
		)
		s.emit(Result{Kind: ResultError, Message: err.Error(), Err: err})
		return
	}
	s.emit(Result{Kind: ResultSent, Message: renderedText(msg)})
	s.emit(Result{Kind: ResultReply, Message: reply})
}

// doSend posts the message with retry on transient failures.
func (s *Sender) doSend(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		sendTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("marshal slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries+1; attempt++ {
		if attempt > 0 {
			// Linear backoff: 1s, 2s.
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				sendTotal.WithLabelValues("error").Inc()
				return "", fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
			sendTotal.WithLabelValues("retry").Inc()
		}

		var reply string
		reply, lastErr = s.doPost(ctx, body)
		if lastErr == nil {
			return reply, nil
		}
		if !isRetryable(lastErr) {
			sendTotal.WithLabelValues("error").Inc()
			return "", lastErr
		}
		s.logger.Debug("Slack send transient failure, will retry",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	sendTotal.WithLabelValues("error").Inc()
	return "", fmt.Errorf("slack send failed after %d attempts: %w", maxRetries+1, lastErr)
}

// doPost executes a single paced HTTP POST and returns the response body.
func (s *Sender) doPost(ctx context.Context, body []byte) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		sendDuration.WithLabelValues("error").Observe(duration)
		return "", &sendError{err: err, retryable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sendTotal.WithLabelValues("success").Inc()
		sendDuration.WithLabelValues("success").Observe(duration)
		return strings.TrimSpace(string(reply)), nil
	}

	sendDuration.WithLabelValues("error").Observe(duration)
	return "", &sendError{
		err:       fmt.Errorf("slack webhook returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(reply))),
		retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}

// emit publishes a result without blocking; a saturated consumer drops.
func (s *Sender) emit(r Result) {
	select {
	case s.results <- r:
	default:
		s.logger.Debug("Result channel full, dropping result", zap.String("kind", string(r.Kind)))
	}
}

// renderedText extracts the human text of a message for notifications.
func renderedText(msg Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	var parts []string
	for _, att := range msg.Attachments {
		if att.Title != "" {
			parts = append(parts, att.Title)
		}
		if att.Text != "" {
			parts = append(parts, att.Text)
		}
	}
	return strings.Join(parts, ": ")
}

// sendError wraps an error with a retryable flag.
type sendError struct {
	err       error
	retryable bool
}

func (e *sendError) Error() string { return e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

// isRetryable returns true if the error is a transient failure worth retrying.
func isRetryable(err error) bool {
	var se *sendError
	if errors.As(err, &se) {
		return se.retryable
	}
	return true
}

// RedactURL masks the path of a webhook URL for safe logging; Slack webhook
// paths embed the credential.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.Path != "" && u.Path != "/" {
		u.Path = "/REDACTED"
	}
	u.RawQuery = ""
	return u.String()
}
