package a2a

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	a2atype "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// DefaultHistoryLength is the history length requested with every task.
const DefaultHistoryLength = 50

// AgentSkill describes one capability advertised in an agent card.
type AgentSkill = a2atype.AgentSkill

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient performs requests. Defaults to a client with a 60s timeout.
	HTTPClient *http.Client

	Retry         RetryConfig
	HistoryLength int
	Logger        logging.Logger
}

// Client delegates tasks to a single remote A2A agent.
type Client struct {
	id     string
	uri    string
	http   *http.Client
	retry  RetryConfig
	hist   int
	logger logging.Logger

	mu     sync.RWMutex
	skills []AgentSkill

	connMu sync.Mutex
	conn   *a2aclient.Client
}

var _ core.AgentInteraction = (*Client)(nil)

// NewClient creates a client for the agent at uri without contacting it.
// uri is both the JSON-RPC endpoint and the base of the agent card URL.
func NewClient(id, uri string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		HTTPClient:    &http.Client{Timeout: 60 * time.Second},
		Retry:         DefaultRetryConfig(),
		HistoryLength: DefaultHistoryLength,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		id:     id,
		uri:    strings.TrimRight(uri, "/"),
		http:   newClassifyingClient(opts.HTTPClient),
		retry:  opts.Retry,
		hist:   opts.HistoryLength,
		logger: opts.Logger,
	}
}

// Connect creates a client and loads the agent's skills from its card.
func Connect(ctx context.Context, id, uri string, optFns ...func(o *ClientOptions)) (*Client, error) {
	c := NewClient(id, uri, optFns...)
	if _, err := c.FetchSkills(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the agent id.
func (c *Client) ID() string { return c.id }

// URI returns the agent base URI.
func (c *Client) URI() string { return c.uri }

// Skills returns the skills loaded by the last FetchSkills call.
func (c *Client) Skills() []AgentSkill {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]AgentSkill(nil), c.skills...)
}

// HasSkill reports whether any known skill mentions skill in its id, name or
// description.
func (c *Client) HasSkill(skill string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.skills {
		if strings.Contains(s.ID, skill) || strings.Contains(s.Name, skill) || strings.Contains(s.Description, skill) {
			return true
		}
	}
	return false
}

// FetchSkills resolves the agent card published under the well-known path
// and keeps its skills.
func (c *Client) FetchSkills(ctx context.Context) ([]AgentSkill, error) {
	actx, att := withAttempt(ctx)
	resolver := &agentcard.Resolver{Client: c.http}

	card, err := resolver.Resolve(actx, c.uri)
	if err != nil {
		kind := core.KindRemoteAgentError
		if isNetworkError(att.Err()) {
			kind = core.KindRemoteAgentUnavailable
		}
		return nil, core.NewExecutionError(kind, fmt.Sprintf("agent %s: resolve agent card", c.id), err)
	}

	skills := append([]AgentSkill(nil), card.Skills...)

	c.mu.Lock()
	c.skills = skills
	c.mu.Unlock()

	c.logger.Debug("a2a.skills.loaded", "agent", c.id, "card", card.Name, "count", len(skills))

	return skills, nil
}

// ExecuteTask sends description to the agent and returns the text of the
// agent's reply. The skill hint is only used for routing and is not sent.
func (c *Client) ExecuteTask(ctx context.Context, description, _ string) (string, error) {
	msg := a2atype.NewMessage(a2atype.MessageRoleUser, a2atype.TextPart{Text: description})
	params := &a2atype.MessageSendParams{Message: msg}
	if c.hist > 0 {
		h := c.hist
		params.Config = &a2atype.MessageSendConfig{HistoryLength: &h}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.backoff(attempt)
			c.logger.Warn("a2a.task.retry",
				"agent", c.id, "message", msg.ID, "attempt", attempt, "delay", delay, "error", lastErr)

			select {
			case <-ctx.Done():
				return "", c.contextError(ctx, lastErr)
			case <-time.After(delay):
			}
		}

		result, err := c.send(ctx, params)
		if err == nil {
			return c.reply(result)
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", c.contextError(ctx, err)
		}
		if IsFatal(err) {
			return "", core.NewExecutionError(core.KindRemoteAgentError,
				fmt.Sprintf("agent %s", c.id), err)
		}
	}

	return "", core.NewExecutionError(core.KindRemoteAgentUnavailable,
		fmt.Sprintf("agent %s: failed after %d retries", c.id, c.retry.MaxRetries), lastErr)
}

func (c *Client) contextError(ctx context.Context, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewExecutionError(core.KindTimeout, fmt.Sprintf("agent %s", c.id), ctx.Err())
	}
	if cause == nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ctx.Err(), cause)
}

// send performs one message/send call. Failures recorded by the transport
// keep their classification; anything else the SDK reports (JSON-RPC errors,
// undecodable results) is fatal.
func (c *Client) send(ctx context.Context, params *a2atype.MessageSendParams) (a2atype.SendMessageResult, error) {
	conn, err := c.connection(ctx)
	if err != nil {
		return nil, NewFatalError(err)
	}

	actx, att := withAttempt(ctx)
	result, err := conn.SendMessage(actx, params)
	if err == nil {
		return result, nil
	}
	if classified := att.Err(); classified != nil {
		return nil, classified
	}
	return nil, NewFatalError(err)
}

func (c *Client) connection(ctx context.Context) (*a2aclient.Client, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	endpoints := []a2atype.AgentInterface{{URL: c.uri, Transport: a2atype.TransportProtocolJSONRPC}}
	conn, err := a2aclient.NewFromEndpoints(ctx, endpoints, a2aclient.WithJSONRPCTransport(c.http))
	if err != nil {
		return nil, fmt.Errorf("create a2a client: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) reply(result a2atype.SendMessageResult) (string, error) {
	switch r := result.(type) {
	case *a2atype.Message:
		c.logger.Debug("a2a.task.completed", "agent", c.id, "message", r.ID)
		return partsText(r.Parts), nil

	case *a2atype.Task:
		msg := r.Status.Message
		switch r.Status.State {
		case a2atype.TaskStateFailed, a2atype.TaskStateCanceled, a2atype.TaskStateRejected:
			detail := string(r.Status.State)
			if msg != nil {
				detail += ": " + partsText(msg.Parts)
			}
			return "", core.NewExecutionError(core.KindRemoteAgentError,
				fmt.Sprintf("agent %s: task %s %s", c.id, r.ID, detail), nil)
		}

		c.logger.Debug("a2a.task.completed", "agent", c.id, "task", r.ID, "state", r.Status.State)

		if msg != nil {
			return partsText(msg.Parts), nil
		}
		if len(r.Artifacts) > 0 {
			texts := make([]string, 0, len(r.Artifacts))
			for _, art := range r.Artifacts {
				texts = append(texts, partsText(art.Parts))
			}
			return strings.Join(texts, "\n"), nil
		}
		return "", core.NewExecutionError(core.KindRemoteAgentError,
			fmt.Sprintf("agent %s: task %s has no reply", c.id, r.ID), nil)

	default:
		return "", core.NewExecutionError(core.KindRemoteAgentError,
			fmt.Sprintf("agent %s: unexpected result %T", c.id, result), nil)
	}
}

// partsText joins the text parts of a message with newlines.
func partsText(parts []a2atype.Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		switch tp := p.(type) {
		case a2atype.TextPart:
			texts = append(texts, tp.Text)
		case *a2atype.TextPart:
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}
