package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ActionKind names one primitive UI operation.
type ActionKind string

const (
	KindOpenApp         ActionKind = "open_app"
	KindCloseApp        ActionKind = "close_app"
	KindType            ActionKind = "type"
	KindPress           ActionKind = "press"
	KindWait            ActionKind = "wait"
	KindClick           ActionKind = "click"
	KindReadScreen      ActionKind = "read_screen"
	KindGetActiveWindow ActionKind = "get_active_window"
	KindFocusWindow     ActionKind = "focus_window"
	KindClickText       ActionKind = "click_text"
	KindWaitForText     ActionKind = "wait_for_text"
	KindAnalyzeScreen   ActionKind = "analyze_screen"
)

// Known reports whether k belongs to the closed action vocabulary.
func (k ActionKind) Known() bool {
	_, ok := vocabulary[k]
	return ok
}

func (k ActionKind) String() string { return string(k) }

// Action is a single step of a plan. Treat it as a value: params are copied
// on construction and only exposed through read accessors.
type Action struct {
	Name   ActionKind     `json:"action"`
	Params map[string]any `json:"params"`
}

// NewAction builds an action with a private copy of params. A nil params map
// becomes an empty one.
func NewAction(name ActionKind, params map[string]any) Action {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Action{Name: name, Params: cp}
}

// HasParams reports whether the params field was present.
func (a Action) HasParams() bool { return a.Params != nil }

// Param returns the raw value stored under key.
func (a Action) Param(key string) (any, bool) {
	v, ok := a.Params[key]
	return v, ok
}

// StringParam returns the param as a string. Numbers are formatted, other types
// are rejected.
func (a Action) StringParam(key string) (string, bool) {
	v, ok := a.Params[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// FloatParam returns the param as a float64, accepting numeric strings.
func (a Action) FloatParam(key string) (float64, bool) {
	v, ok := a.Params[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// IntParam returns the param rounded to the nearest integer.
func (a Action) IntParam(key string) (int, bool) {
	f, ok := a.FloatParam(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Describe renders the action for logs and confirmation prompts.
func (a Action) Describe() string {
	if len(a.Params) == 0 {
		return string(a.Name)
	}
	data, err := json.Marshal(a.Params)
	if err != nil {
		return fmt.Sprintf("%s(%v)", a.Name, a.Params)
	}
	return fmt.Sprintf("%s %s", a.Name, data)
}
