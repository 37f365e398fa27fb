package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when plan JSON cannot be decoded as an object.
	ErrMalformed = errors.New("plan is not a JSON object")
	// ErrMissingActions is returned when the plan object has no actions key.
	ErrMissingActions = errors.New("plan has no actions list")
)

// Plan is an ordered list of actions produced for one request. Error carries
// a diagnostic when generation degraded to an empty plan.
type Plan struct {
	Actions []Action `json:"actions"`
	Error   string   `json:"error,omitempty"`
}

// New returns a plan over a copy of actions.
func New(actions ...Action) Plan {
	cp := make([]Action, len(actions))
	copy(cp, actions)
	return Plan{Actions: cp}
}

// Empty returns a plan with no actions tagged with a diagnostic.
func Empty(diagnostic string) Plan {
	return Plan{Actions: []Action{}, Error: diagnostic}
}

func (p Plan) Len() int { return len(p.Actions) }

func (p Plan) IsEmpty() bool { return len(p.Actions) == 0 }

// MarshalJSON always emits an actions list, never null.
func (p Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	out := alias(p)
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON enforces the {"actions": [...]} shape.
func (p *Plan) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse decodes plan JSON. An action without a params key keeps nil Params so
// that validation can reject it.
func Parse(data []byte) (Plan, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil || root == nil {
		if err == nil {
			err = errors.New("null document")
		}
		return Plan{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawActions, ok := root["actions"]
	if !ok {
		return Plan{}, ErrMissingActions
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawActions, &items); err != nil || items == nil {
		return Plan{}, fmt.Errorf("%w: actions must be a list", ErrMissingActions)
	}

	p := Plan{Actions: make([]Action, 0, len(items))}
	if rawErr, ok := root["error"]; ok {
		_ = json.Unmarshal(rawErr, &p.Error)
	}

	for i, item := range items {
		a, err := parseAction(item)
		if err != nil {
			return Plan{}, fmt.Errorf("action %d: %w", i, err)
		}
		p.Actions = append(p.Actions, a)
	}
	return p, nil
}

func parseAction(data []byte) (Action, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return Action{}, fmt.Errorf("%w: action is not an object", ErrMalformed)
	}

	var a Action
	if rawName, ok := obj["action"]; ok {
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			return Action{}, fmt.Errorf("%w: action name must be a string", ErrMalformed)
		}
		a.Name = ActionKind(name)
	}

	rawParams, ok := obj["params"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawParams), []byte("null")) {
		return a, nil
	}
	var params map[string]any
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return Action{}, fmt.Errorf("%w: params must be an object", ErrMalformed)
	}
	a.Params = params
	return a, nil
}
