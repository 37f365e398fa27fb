package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Collaborator names the service an action is dispatched to.
type Collaborator string

const (
	CollaboratorAdapter Collaborator = "os_adapter"
	CollaboratorWindow  Collaborator = "window_state"
	CollaboratorVision  Collaborator = "visual_grounding"
)

// Definition describes one entry of the action vocabulary.
type Definition struct {
	Kind         ActionKind
	Params       []string
	Optional     []string
	Description  string
	Collaborator Collaborator
	// Retriable kinds get extra attempts at the executor layer.
	Retriable bool
	schema    string
}

// Signature renders the action as it appears in the planner prompt.
func (s Definition) Signature() string {
	parts := append([]string{}, s.Params...)
	for _, o := range s.Optional {
		parts = append(parts, o+"?")
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ", "))
}

// DefaultWaitForTextTimeout is used when wait_for_text omits timeout (seconds).
const DefaultWaitForTextTimeout = 10

var vocabulary = map[ActionKind]Definition{
	KindOpenApp: {
		Kind: KindOpenApp, Params: []string{"name"}, Retriable: true,
		Description:  "Launch an application by name.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["name"],"properties":{"name":{"type":"string","minLength":1}}}`,
	},
	KindCloseApp: {
		Kind: KindCloseApp, Params: []string{"name"},
		Description:  "Close every running instance of an application.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["name"],"properties":{"name":{"type":"string","minLength":1}}}`,
	},
	KindType: {
		Kind: KindType, Params: []string{"text"}, Retriable: true,
		Description:  "Type literal text into the focused window, exactly as written in the request.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`,
	},
	KindPress: {
		Kind: KindPress, Params: []string{"key"},
		Description:  "Press a key or chord such as enter, tab, ctrl+s.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["key"],"properties":{"key":{"type":"string","minLength":1}}}`,
	},
	KindWait: {
		Kind: KindWait, Params: []string{"seconds"}, Retriable: true,
		Description:  "Pause for a number of seconds.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["seconds"],"properties":{"seconds":{"type":["number","string"]}}}`,
	},
	KindClick: {
		Kind: KindClick, Params: []string{"x", "y"}, Retriable: true,
		Description:  "Left-click at absolute screen coordinates.",
		Collaborator: CollaboratorAdapter,
		schema:       `{"type":"object","required":["x","y"],"properties":{"x":{"type":["number","string"]},"y":{"type":["number","string"]}}}`,
	},
	KindReadScreen: {
		Kind:         KindReadScreen,
		Description:  "Read all text currently visible on screen.",
		Collaborator: CollaboratorVision,
		schema:       `{"type":"object"}`,
	},
	KindGetActiveWindow: {
		Kind:         KindGetActiveWindow,
		Description:  "Report the title of the focused window.",
		Collaborator: CollaboratorWindow,
		schema:       `{"type":"object"}`,
	},
	KindFocusWindow: {
		Kind: KindFocusWindow, Params: []string{"title"},
		Description:  "Bring the first window whose title contains the text to the foreground.",
		Collaborator: CollaboratorWindow,
		schema:       `{"type":"object","required":["title"],"properties":{"title":{"type":"string","minLength":1}}}`,
	},
	KindClickText: {
		Kind: KindClickText, Params: []string{"text"},
		Description:  "Find on-screen text (for example a button label) and click its center.",
		Collaborator: CollaboratorVision,
		schema:       `{"type":"object","required":["text"],"properties":{"text":{"type":"string","minLength":1}}}`,
	},
	KindWaitForText: {
		Kind: KindWaitForText, Params: []string{"text"}, Optional: []string{"timeout"},
		Description:  "Wait until text appears on screen (timeout in seconds, default 10).",
		Collaborator: CollaboratorVision,
		schema:       `{"type":"object","required":["text"],"properties":{"text":{"type":"string","minLength":1},"timeout":{"type":["number","string"]}}}`,
	},
	KindAnalyzeScreen: {
		Kind: KindAnalyzeScreen, Params: []string{"prompt"},
		Description:  "Ask a vision model a question about the current screen.",
		Collaborator: CollaboratorVision,
		schema:       `{"type":"object","required":["prompt"],"properties":{"prompt":{"type":"string","minLength":1}}}`,
	},
}

// Lookup returns the vocabulary entry for kind.
func Lookup(kind ActionKind) (Definition, bool) {
	s, ok := vocabulary[kind]
	return s, ok
}

// Vocabulary returns the full vocabulary sorted by name.
func Vocabulary() []Definition {
	out := make([]Definition, 0, len(vocabulary))
	for _, s := range vocabulary {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Retriable reports whether the executor may retry kind.
func Retriable(kind ActionKind) bool {
	return vocabulary[kind].Retriable
}
