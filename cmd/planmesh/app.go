package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/planmesh"
	"github.com/hupe1980/planmesh/a2a"
	"github.com/hupe1980/planmesh/agent"
	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/engine"
	"github.com/hupe1980/planmesh/evaluation"
	"github.com/hupe1980/planmesh/events"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/metrics"
	"github.com/hupe1980/planmesh/model"
	"github.com/hupe1980/planmesh/model/anthropic"
	"github.com/hupe1980/planmesh/model/openai"
)

// app wires the configured services around a PlanMesh.
type app struct {
	cfg    *config.Config
	logger *logging.PlanMeshLogger
	mesh   *planmesh.PlanMesh

	nats    *events.NATSPublisher
	metrics *http.Server
}

func newLogger(cfg *config.Config, out io.Writer) (*logging.PlanMeshLogger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output = out
	lc.Component = "planmesh"
	return logging.NewLogger(lc), nil
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "mock":
		return model.NewMockModel(cfg.Name), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// buildAgents creates the delegation directory. Remote agents whose skills
// cannot be fetched are still registered; they are reachable by preference
// or as the default.
func buildAgents(ctx context.Context, cfg *config.Config, llm model.Model, logger logging.Logger) *a2a.Directory {
	dir := a2a.NewDirectory(func(o *a2a.DirectoryOptions) { o.Logger = logger })
	limiter := agent.NewCallLimiter(cfg.Model.MaxCalls)

	for _, ac := range cfg.Agents {
		if ac.URL == "" {
			dir.Add(agent.NewModelInteraction(ac.ID, llm, func(o *agent.ModelInteractionOptions) {
				o.Skills = ac.Skills
				o.Timeout = cfg.Model.Timeout
				o.Limiter = limiter
				o.Logger = logger
			}))
		} else {
			clientOpts := func(o *a2a.ClientOptions) {
				o.Retry = cfg.RetryOptions()
				o.Logger = logger
			}
			client, err := a2a.Connect(ctx, ac.ID, ac.URL, clientOpts)
			if err != nil {
				logger.Warn("cli.agent.skills_unavailable", "agent", ac.ID, "url", ac.URL, "error", err)
				client = a2a.NewClient(ac.ID, ac.URL, clientOpts)
			}
			dir.Add(client)
		}
		if ac.Default {
			dir.SetDefault(ac.ID)
		}
	}

	return dir
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}

	engineCfg, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	llm, err := buildModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	opts := planmesh.Options{
		EngineConfig: engineCfg,
		Logger:       logger,
	}
	if len(cfg.Agents) > 0 {
		opts.Agents = buildAgents(ctx, cfg, llm, logger.WithComponent("a2a"))
	}
	if cfg.Evaluation.Enabled && llm != nil {
		opts.Evaluation = evaluation.NewJudge(llm, func(o *evaluation.JudgeOptions) {
			o.Logger = logger.WithComponent("evaluation")
		})
	}

	if cfg.NATS.URL != "" {
		pub, err := events.ConnectNATS(cfg.NATS.URL, func(o *events.NATSOptions) {
			o.SubjectPrefix = cfg.NATS.SubjectPrefix
		})
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.nats = pub
		opts.Publishers = append(opts.Publishers, pub)
	}

	if cfg.Metrics.Addr != "" {
		observer, err := metrics.NewObserver(prometheus.NewRegistry())
		if err != nil {
			a.close()
			return nil, err
		}
		opts.Observer = observer

		mux := http.NewServeMux()
		mux.Handle("/metrics", observer.Handler())
		a.metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("cli.metrics.serve_failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	a.mesh = planmesh.New(func(o *planmesh.Options) { *o = opts })

	return a, nil
}

// execute runs a plan file and returns its result.
func (a *app) execute(ctx context.Context, source []byte, query, conversationID string) (*engine.ExecutionResult, error) {
	return a.mesh.ExecuteSource(ctx, source, query, func(o *engine.RunOptions) {
		o.ConversationID = conversationID
		if a.cfg.Evaluation.SuccessCriteria != "" {
			o.SuccessCriteria = a.cfg.Evaluation.SuccessCriteria
		}
	})
}

func (a *app) close() {
	if a.mesh != nil {
		a.mesh.Close()
	}
	if a.nats != nil {
		a.nats.Conn().Close()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
}

// describeError formats a failed run for the terminal.
func describeError(err error) string {
	var perr *engine.PlanError
	if errors.As(err, &perr) && perr.NodeID != "" {
		if ee, ok := core.AsExecutionError(err); ok {
			return fmt.Sprintf("activity %s failed (%s): %s", perr.NodeID, ee.Kind, ee.Message)
		}
	}
	return err.Error()
}
