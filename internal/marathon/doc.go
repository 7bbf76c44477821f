// Package marathon implements the client side of Marathon's server-sent
// event bus (/v2/events).
//
// # Contract
//
// The Client:
//  1. Opens a long-lived GET /v2/events request with Accept: text/event-stream,
//     requesting only the configured event types via event_type query parameters
//  2. Parses SSE frames (event:/data: lines, dispatch on blank line) and
//     decodes each data frame into an Event
//  3. Invokes the single registered Handler for the frame's event type;
//     frames without a registered handler are dropped
//  4. Reconnects on stream loss with exponential backoff (base 1s, doubling,
//     capped at 1 minute), resetting the backoff after a successful connect
//
// Subscription state transitions (connected/disconnected) are reported
// through Lifecycle callbacks; decode and transport errors go to OnError and
// never terminate the loop. Unsubscribe stops the loop and fires a final
// OnUnsubscribed if the stream was up.
package marathon
