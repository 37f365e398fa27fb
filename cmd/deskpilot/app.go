package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rahul/deskpilot/internal/agent"
	"github.com/rahul/deskpilot/internal/desktop"
	"github.com/rahul/deskpilot/internal/executor"
	"github.com/rahul/deskpilot/internal/governance"
	"github.com/rahul/deskpilot/internal/memory"
	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"github.com/rahul/deskpilot/internal/store"
	"github.com/rahul/deskpilot/internal/vision"
	"github.com/rahul/deskpilot/pkg/config"
	"go.uber.org/zap"
)

// app is the fully wired pipeline.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	memory  *memory.Store
	journal *store.RunStore
	pilot   *agent.Pilot
}

// newValidator builds the safety policy from the safety section.
func newValidator(cfg *config.Config) (*governance.Validator, error) {
	v := governance.NewValidator()
	v.MaxActions = cfg.Safety.MaxActions
	for _, pattern := range cfg.Safety.DenyPatterns {
		if err := v.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("invalid safety.deny_patterns entry %q: %w", pattern, err)
		}
	}
	if cfg.Safety.AllowAnalyzeScreen {
		v.AllowKind(plan.KindAnalyzeScreen)
	}
	return v, nil
}

func openJournal(cfg *config.Config) (*store.RunStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return store.NewRunStore(cfg.History.Path)
}

func newApp(cfg *config.Config) (*app, error) {
	logger := observability.GetLogger()

	mem, err := memory.Open(cfg.Memory.Path, logger)
	if err != nil {
		return nil, err
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	validator, err := newValidator(cfg)
	if err != nil {
		return nil, err
	}

	run := desktop.ExecRunner{}
	input := desktop.NewPlatformInput(run, cfg.Executor.TypeDelay)
	procs := desktop.NewProcessManager(cfg.Apps, logger)
	adapter := desktop.NewAdapter(input, procs, logger)
	windows := desktop.NewWindowService(desktop.NewPlatformWindows(run), cfg.Window, logger)

	shots := filepath.Join(os.TempDir(), "deskpilot")
	grounder := vision.NewGrounder(
		vision.NewScreenCapturer(run, shots, cfg.Grounding.Display),
		vision.NewTesseract(run, cfg.Grounding.OCRCommand, cfg.Grounding.Language),
		adapter, cfg.Grounding, logger)

	opts := []executor.Option{
		executor.WithWindows(windows),
		executor.WithGrounder(grounder),
		executor.WithMemory(mem),
	}

	var completion agent.Completion
	if name, provider := cfg.GetDefaultProvider(); name != "" {
		model, err := agent.NewModel(name, provider, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize provider %s: %w", name, err)
		}
		completion = agent.NewLLMCompletion(model, logger)

		if cfg.Safety.AllowAnalyzeScreen {
			visionModel, err := agent.NewModel(name, provider, true)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize vision model: %w", err)
			}
			opts = append(opts, executor.WithVision(agent.NewScreenAnalyzer(visionModel, logger)))
		}
	} else {
		logger.Warn("no enabled provider; only remembered requests can be planned")
	}

	prompts := agent.NewPromptManager(cfg.App.Prompts)
	prompts.MaxActions = cfg.Safety.MaxActions
	prompts.Actions = validator.Allowed()
	generator := agent.NewGenerator(completion, prompts, mem, logger)
	exec := executor.New(adapter, cfg.Executor, logger, opts...)

	a := &app{cfg: cfg, logger: logger, memory: mem, journal: journal}
	var j agent.Journal
	if journal != nil {
		j = journal
	}
	a.pilot = agent.NewPilot(generator, validator, exec, windows, j, logger)
	return a, nil
}

func (a *app) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}
