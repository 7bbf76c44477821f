// Package bridge is the façade composing the Marathon event stream client,
// the filter gate and the Slack sender.
//
// # Contract
//
// For each configured event type the bridge registers exactly one handler.
// The handler:
//  1. Publishes the raw event outward as a marathon_event notification,
//     unconditionally and decoupled from the forwarding decision
//  2. Applies the combined gate: app-id patterns first, then the
//     task-status allow-list for status_update_event only
//  3. On pass, renders the Slack message and enqueues it with the sender
//
// The bridge also owns the subscription health flag (503 until the first
// subscribe confirmation, 200 while subscribed, back to 503 on stream loss)
// and fans six notification kinds out to named taps: error, sent_message,
// received_reply, marathon_event, subscribed, unsubscribed. Taps are
// buffered and never block publishers; slow consumers drop.
//
// Stop issues the unsubscribe request, waits one bounded drain window for
// in-flight deliveries to settle, then closes the sender and all taps.
package bridge
