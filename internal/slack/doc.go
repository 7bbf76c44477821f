// Package slack renders Marathon events as Slack messages and delivers
// them to an incoming webhook.
//
// Rendering produces one attachment per event with a color keyed to the
// outcome (good/danger/warning) and a short human-readable text. Delivery
// runs through a buffered worker pool paced at the webhook rate limit, with
// two retries on transient failures (5xx, 429, connection errors). Producers
// never block: a full queue drops the message. Outcomes (sent, webhook
// reply, error) are published asynchronously on the Results channel.
package slack
