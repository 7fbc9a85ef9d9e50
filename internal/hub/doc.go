// Package hub fans events out to subscribers.
//
// Each subscriber owns a bounded buffer. When a subscriber falls behind, the
// oldest undelivered event in its buffer is discarded to make room, so a slow
// reader never blocks the publisher or other subscribers. Events for a given
// subscriber are delivered in publish order.
//
// The Broadcaster also serves subscriptions as a Server-Sent Events stream.
package hub
