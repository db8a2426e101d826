// Package events streams plan run events (state transitions, activity
// completions, run completion) to observers. ChannelPublisher delivers them
// in process; NATSPublisher publishes them as JSON on NATS subjects of the
// form <prefix>.<plan>.<event type>.
package events
