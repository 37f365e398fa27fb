package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"go.uber.org/zap"
)

// DesktopContext is what the planner is told about the live desktop.
type DesktopContext struct {
	ActiveWindow string `json:"active_window"`
}

// PlanLookup finds a previously successful plan for a request.
type PlanLookup interface {
	Lookup(request string) (plan.Plan, bool)
}

// Generator turns a natural-language request into a plan. It never fails:
// every problem degrades to an empty plan carrying a diagnostic.
type Generator struct {
	completion Completion
	prompts    *PromptManager
	memory     PlanLookup
	logger     *zap.Logger
}

func NewGenerator(completion Completion, prompts *PromptManager, memory PlanLookup, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = observability.GetLogger()
	}
	if prompts == nil {
		prompts = NewPromptManager("")
	}
	return &Generator{completion: completion, prompts: prompts, memory: memory, logger: logger.Named("planner")}
}

func (g *Generator) Generate(ctx context.Context, request string, dctx DesktopContext) plan.Plan {
	if g.memory != nil {
		if p, ok := g.memory.Lookup(request); ok {
			g.logger.Info("plan recalled from memory", observability.Event(observability.EventTypeMemory),
				zap.String("request", request), zap.Int("actions", p.Len()))
			return p
		}
	}
	if g.completion == nil {
		return plan.Empty("no completion provider configured")
	}

	prompt, err := g.prompts.PlannerPrompt(request, dctx)
	if err != nil {
		g.logger.Error("failed to build prompt", observability.Event(observability.EventTypePlan), zap.Error(err))
		return plan.Empty(err.Error())
	}
	system, err := g.prompts.SystemPrompt()
	if err != nil {
		g.logger.Warn("failed to load system prompt", zap.Error(err))
	}

	raw, err := g.completion.Complete(ctx, system, prompt)
	if err != nil {
		g.logger.Error("completion failed", observability.Event(observability.EventTypeLLM), zap.Error(err))
		return plan.Empty(fmt.Sprintf("completion failed: %v", err))
	}

	p, err := plan.Parse([]byte(extractJSON(raw)))
	if err != nil {
		g.logger.Warn("unparseable plan", observability.Event(observability.EventTypePlan),
			zap.Error(err), zap.String("raw", truncate(raw, 200)))
		return plan.Empty(fmt.Sprintf("could not parse plan: %v", err))
	}
	g.logger.Info("plan generated", observability.Event(observability.EventTypePlan),
		zap.String("request", request), zap.Int("actions", p.Len()))
	return p
}

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
