package a2a

import (
	"context"
	"io"
	"net/http"
	"sync"
)

type attemptKey struct{}

// attempt collects the classified transport failure of one request.
type attempt struct {
	mu  sync.Mutex
	err error
}

func withAttempt(ctx context.Context) (context.Context, *attempt) {
	a := &attempt{}
	return context.WithValue(ctx, attemptKey{}, a), a
}

func (a *attempt) set(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// Err returns the recorded failure, if any.
func (a *attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// classifyingTransport turns network failures and non-success responses into
// TransientError or FatalError values and records them on the attempt carried
// by the request context.
type classifyingTransport struct {
	base http.RoundTripper
}

func newClassifyingClient(hc *http.Client) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = classifyingTransport{base: base}
	return &wrapped
}

func (t classifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, record(req.Context(), NewTransientError(err))
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return nil, record(req.Context(), classifyHTTPError(resp.StatusCode, body))
}

func record(ctx context.Context, err error) error {
	if a, ok := ctx.Value(attemptKey{}).(*attempt); ok {
		a.set(err)
	}
	return err
}
