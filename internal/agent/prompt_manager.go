package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rahul/deskpilot/internal/observability"
	"github.com/rahul/deskpilot/internal/plan"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

const plannerFile = "planner.md"

// defaultPlannerTemplate is used when the prompts directory has no planner.md.
const defaultPlannerTemplate = `You control a desktop computer by emitting a plan of actions.

Available actions (name(params) - description):
{{.vocabulary}}
{{if .active_window}}
The focused window is: {{.active_window}}
{{end}}
Rules:
- Respond with a single JSON object and nothing else: {"actions": [{"action": "<name>", "params": {...}}]}
- Use only the actions listed above. Never invent new action names.
- Every action must have a "params" object, even when it is empty.
- Never use placeholders such as <text> or "..."; fill in concrete values.
- Text for "type" must be copied verbatim from the request.
- Prefer focus_window over clicking when the target window is already open.
- Use at most {{.max_actions}} actions.
- If the request cannot be done with these actions, respond with {"actions": [], "error": "<reason>"}.

Request: {{.request}}`

// PromptManager loads prompt text from a directory of markdown files.
type PromptManager struct {
	Directory  string
	MaxActions int
	// Actions limits the advertised vocabulary. Empty advertises every action.
	Actions []plan.ActionKind
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir, MaxActions: 10}
}

// SystemPrompt joins the optional persona files in a fixed order. A missing
// directory yields an empty prompt.
func (pm *PromptManager) SystemPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	order := map[string]int{
		"identity.md": 1,
		"rules.md":    2,
		"apps.md":     3,
		"user.md":     4,
	}
	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || f.Name() == plannerFile {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			observability.GetLogger().Warn("failed to read prompt file", zap.String("path", path), zap.Error(err))
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}

// PlannerTemplate returns planner.md when present, otherwise the built-in
// template.
func (pm *PromptManager) PlannerTemplate() (string, error) {
	if pm.Directory == "" {
		return defaultPlannerTemplate, nil
	}
	data, err := os.ReadFile(filepath.Join(pm.Directory, plannerFile))
	if os.IsNotExist(err) {
		return defaultPlannerTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read planner prompt: %w", err)
	}
	return string(data), nil
}

// PlannerPrompt renders the planning prompt for one request.
func (pm *PromptManager) PlannerPrompt(request string, dctx DesktopContext) (string, error) {
	tmpl, err := pm.PlannerTemplate()
	if err != nil {
		return "", err
	}
	pt := prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: []string{"vocabulary", "active_window", "max_actions", "request"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
	maxActions := pm.MaxActions
	if maxActions <= 0 {
		maxActions = 10
	}
	out, err := pt.Format(map[string]any{
		"vocabulary":    VocabularyText(pm.Actions...),
		"active_window": dctx.ActiveWindow,
		"max_actions":   maxActions,
		"request":       request,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render planner prompt: %w", err)
	}
	return out, nil
}

// VocabularyText renders one line per action for the planner prompt. Passing
// kinds restricts it to those actions.
func VocabularyText(only ...plan.ActionKind) string {
	keep := make(map[plan.ActionKind]bool, len(only))
	for _, k := range only {
		keep[k] = true
	}
	var b strings.Builder
	for _, s := range plan.Vocabulary() {
		if len(keep) > 0 && !keep[s.Kind] {
			continue
		}
		fmt.Fprintf(&b, "- %s - %s\n", s.Signature(), s.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
