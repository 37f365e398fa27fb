package governance

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/rahul/deskpilot/internal/plan"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// DefaultMaxActions bounds how much a single confirmation can authorize.
const DefaultMaxActions = 10

// Result contains the outcome of a policy evaluation. Reason is written for
// the human approving the plan.
type Result struct {
	Effect Effect `json:"effect"`
	Reason string `json:"reason"`
}

func (r Result) Valid() bool { return r.Effect == EffectAllow }

func allow(reason string) Result { return Result{Effect: EffectAllow, Reason: reason} }

func deny(format string, args ...any) Result {
	return Result{Effect: EffectDeny, Reason: fmt.Sprintf(format, args...)}
}

// BlockedActions are never executed, even when also allowed.
var BlockedActions = []plan.ActionKind{
	"delete_file",
	"run_shell",
	"download_file",
	"edit_registry",
	"install_software",
	"change_settings",
	"execute_command",
	"run_command",
	"shell",
}

// AllowedActions is the default whitelist.
var AllowedActions = []plan.ActionKind{
	plan.KindOpenApp,
	plan.KindCloseApp,
	plan.KindType,
	plan.KindPress,
	plan.KindWait,
	plan.KindClick,
	plan.KindClickText,
	plan.KindWaitForText,
	plan.KindReadScreen,
	plan.KindGetActiveWindow,
	plan.KindFocusWindow,
}

// Validator checks candidate plans against static policy tables. It never
// mutates the plan and performs no I/O. Configure it before sharing it
// between goroutines.
type Validator struct {
	MaxActions  int
	blocked     map[plan.ActionKind]bool
	allowed     map[plan.ActionKind]bool
	deniedRegex []*regexp.Regexp
}

func NewValidator() *Validator {
	v := &Validator{
		MaxActions: DefaultMaxActions,
		blocked:    make(map[plan.ActionKind]bool, len(BlockedActions)),
		allowed:    make(map[plan.ActionKind]bool, len(AllowedActions)),
	}
	for _, k := range BlockedActions {
		v.blocked[k] = true
	}
	for _, k := range AllowedActions {
		v.allowed[k] = true
	}
	return v
}

// AllowKind adds kind to the whitelist. Blocked kinds stay blocked.
func (v *Validator) AllowKind(kind plan.ActionKind) {
	v.allowed[kind] = true
}

// BlockKind adds kind to the blocklist.
func (v *Validator) BlockKind(kind plan.ActionKind) {
	v.blocked[kind] = true
}

// DenyArguments rejects plans whose string params match pattern, such as
// typing a destructive command into a terminal.
func (v *Validator) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	v.deniedRegex = append(v.deniedRegex, re)
	return nil
}

// Allowed returns the whitelist, sorted.
func (v *Validator) Allowed() []plan.ActionKind {
	out := make([]plan.ActionKind, 0, len(v.allowed))
	for k := range v.allowed {
		if !v.blocked[k] {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateJSON applies the structural rule to raw plan JSON before the
// remaining rules.
func (v *Validator) ValidateJSON(data []byte) (plan.Plan, Result) {
	p, err := plan.Parse(data)
	if err != nil {
		return plan.Plan{}, deny("Plan is not well-formed: %v", err)
	}
	return p, v.Validate(p)
}

// Validate checks, in order: size, names (blocklist before whitelist),
// params presence, then argument patterns. The first failure wins.
func (v *Validator) Validate(p plan.Plan) Result {
	if p.Actions == nil && p.Error == "" {
		return deny("Plan is not well-formed: missing actions list")
	}

	// MaxActions can only lower the ceiling.
	max := v.MaxActions
	if max <= 0 || max > DefaultMaxActions {
		max = DefaultMaxActions
	}
	if len(p.Actions) > max {
		return deny("Plan has %d actions, more than the limit of %d", len(p.Actions), max)
	}

	for i, a := range p.Actions {
		if a.Name == "" {
			return deny("Action %d has no name", i+1)
		}
		if v.blocked[a.Name] {
			return deny("Action %d '%s' is blocked by safety policy", i+1, a.Name)
		}
		if !v.allowed[a.Name] {
			return deny("Action %d '%s' is not an allowed action", i+1, a.Name)
		}
		if !a.HasParams() {
			return deny("Action %d '%s' is missing params", i+1, a.Name)
		}
	}

	for i, a := range p.Actions {
		for key, val := range a.Params {
			s, ok := val.(string)
			if !ok {
				continue
			}
			for _, re := range v.deniedRegex {
				if re.MatchString(s) {
					return deny("Action %d '%s' param %q matches restricted pattern: %s", i+1, a.Name, key, re.String())
				}
			}
		}
	}

	if len(p.Actions) == 0 {
		return allow("Plan is empty; nothing to execute")
	}
	return allow(fmt.Sprintf("Approved: %d action(s) within policy", len(p.Actions)))
}
