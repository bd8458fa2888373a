// Command maestro runs a configured ensemble against a prompt given on
// the command line:
//
//	maestro -config config.toml "compare these two designs"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/avencia/maestro"
	"github.com/avencia/maestro/backend/openaicompat"
	"github.com/avencia/maestro/internal/config"
	"github.com/avencia/maestro/observer"
	"github.com/avencia/maestro/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: maestro [-config config.toml] <prompt>")
		os.Exit(2)
	}
	input := strings.Join(flag.Args(), " ")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(input, *configPath, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(input, configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("config declares no agents")
	}

	var be maestro.Backend = openaicompat.New(cfg.Backend.APIKey, cfg.Backend.Model, cfg.Backend.BaseURL)
	be = maestro.WithRetry(be,
		maestro.RetryMaxAttempts(cfg.Backend.MaxAttempts),
		maestro.RetryLogger(logger))

	var tracer maestro.Tracer
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			return fmt.Errorf("observer init: %w", err)
		}
		defer shutdown(context.Background())
		be = observer.Backend(be, inst)
		tracer = observer.NewTracer()
	}

	eb := maestro.NewEnsemble("maestro")
	for _, ac := range cfg.Agents {
		builder := maestro.NewAgent(ac.ID).
			Description(ac.Description).
			SystemPrompt(ac.SystemPrompt).
			Backend(be).
			Model(ac.Model).
			Logger(logger)
		if tracer != nil {
			builder = builder.Tracer(tracer)
		}
		agent, err := builder.Build()
		if err != nil {
			return fmt.Errorf("build agent %q: %w", ac.ID, err)
		}
		eb.Role(maestro.AgentRole{ID: ac.ID, Agent: agent, Role: ac.Role})
	}

	conductor, err := buildConductor(cfg, logger)
	if err != nil {
		return fmt.Errorf("build conductor: %w", err)
	}
	eb.Conductor(conductor).Logger(logger)

	if cfg.Trace.SQLitePath != "" {
		sink := sqlite.New(cfg.Trace.SQLitePath, sqlite.WithLogger(logger))
		defer sink.Close()
		if err := sink.Init(ctx); err != nil {
			return fmt.Errorf("trace sink init: %w", err)
		}
		eb.TraceSink(sink)
	}

	ens, err := eb.Build()
	if err != nil {
		return fmt.Errorf("build ensemble: %w", err)
	}

	result, err := ens.Run(ctx, input)
	if err != nil {
		return err
	}

	fmt.Println(result.Response)
	logger.Info("run complete",
		"trace", result.Trace.ID(),
		"steps", result.Trace.Len(),
		"tokens", result.Usage.TotalTokens)
	return nil
}

func buildConductor(cfg config.Config, logger *slog.Logger) (maestro.Conductor, error) {
	b := maestro.NewConductor().
		MaxRounds(cfg.Run.MaxRounds).
		OnError(maestro.ErrorMode(cfg.Run.ErrorMode)).
		Logger(logger)

	switch cfg.Run.Strategy {
	case "sequential":
		b = b.Sequential()
	case "parallel":
		b = b.Parallel().Merger(maestro.MergeConcatenate(""))
	case "hierarchical":
		b = b.Hierarchical(cfg.Run.Manager)
	case "debate":
		b = b.Debate()
	case "voting":
		b = b.Voting()
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Run.Strategy)
	}
	return b.Build()
}
