package agent

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCallBudgetExhausted is returned once a CallLimiter's budget is used up.
var ErrCallBudgetExhausted = errors.New("model call budget exhausted")

// CallLimiter caps the number of model calls. It can be shared by several
// agents to give them a common budget.
type CallLimiter struct {
	limit int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter allowing limit calls. Zero means
// unlimited.
func NewCallLimiter(limit int) *CallLimiter {
	return &CallLimiter{limit: limit}
}

// Acquire records a call, failing when the budget is exhausted.
func (l *CallLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit > 0 && l.count >= l.limit {
		return fmt.Errorf("%w: %d calls", ErrCallBudgetExhausted, l.limit)
	}
	l.count++
	return nil
}

// Count returns the number of calls made.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit == 0 {
		return -1
	}
	return l.limit - l.count
}
