// Package main provides the planmesh binary: it validates plan documents and
// executes them against the configured agents, tools and tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/planmesh/config"
	"github.com/hupe1980/planmesh/engine"
	"github.com/hupe1980/planmesh/plan"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "planmesh"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Compile and execute workflow plans",
		Long: `planmesh compiles declarative plan documents (JSON or YAML) into a
dependency graph and executes their activities: delegations to agents,
direct tool calls and task sequences.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(flags), validateCmd(), configCmd(), versionCmd())

	return cmd
}

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		query          string
		conversationID string
		output         string
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run PLAN_FILE",
		Short: "Execute a plan document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}

			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			res, runErr := a.execute(ctx, source, query, conversationID)
			if res == nil {
				return runErr
			}

			if err := printResult(cmd.OutOrStdout(), output, res); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("plan failed: %s", describeError(runErr))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "User query recorded with the run")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (generated when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration")

	return cmd
}

func printResult(w io.Writer, format string, res *engine.ExecutionResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Success {
		return nil
	}
	_, err := fmt.Fprintln(w, res.Output)
	return err
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PLAN_FILE",
		Short: "Compile a plan document and print its execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := plan.LoadFile(args[0])
			if err != nil {
				return err
			}
			g, err := plan.Compile(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "plan %q: %d activities\n", g.PlanName, g.Len())
			for i, id := range g.Order() {
				var deps []string
				for _, e := range g.Inbound(id) {
					if e.Condition != nil {
						deps = append(deps, fmt.Sprintf("%s[%q]", e.Source, *e.Condition))
					} else {
						deps = append(deps, e.Source)
					}
				}
				fmt.Fprintf(out, "%3d. %s (%s)", i+1, id, g.Activity(id).ActivityType)
				if len(deps) > 0 {
					fmt.Fprintf(out, " <- %v", deps)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.DefaultConfig().SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
