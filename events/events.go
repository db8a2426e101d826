package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Type names the kind of an Event.
type Type string

const (
	StateChanged      Type = "state_changed"
	ActivityCompleted Type = "activity_completed"
	ActivityFailed    Type = "activity_failed"
	PlanFinished      Type = "plan_finished"
)

// Event is a single observation of a plan run.
type Event struct {
	Type       Type      `json:"type"`
	Plan       string    `json:"plan"`
	RunID      string    `json:"run_id"`
	State      string    `json:"state,omitempty"`
	ActivityID string    `json:"activity_id,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

// Publish implements Publisher.
func (NoOpPublisher) Publish(context.Context, Event) error { return nil }

// ErrBufferFull is returned by ChannelPublisher when the consumer lags.
var ErrBufferFull = errors.New("event buffer full")

// ErrClosed is returned when publishing to a closed publisher.
var ErrClosed = errors.New("publisher closed")

// ChannelPublisher fans events into a buffered channel. Publish never blocks;
// events that do not fit are dropped with ErrBufferFull.
type ChannelPublisher struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
func (p *ChannelPublisher) Events() <-chan Event { return p.ch }

// Publish implements Publisher.
func (p *ChannelPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.ch <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close closes the events channel. Further publishes fail with ErrClosed.
func (p *ChannelPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
