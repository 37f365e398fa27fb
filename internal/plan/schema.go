package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce sync.Once
	schemas    map[ActionKind]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	schemas = make(map[ActionKind]*jsonschema.Schema, len(vocabulary))
	for kind, def := range vocabulary {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://deskpilot.local/actions/%s.schema.json", kind)
		if err := c.AddResource(url, strings.NewReader(def.schema)); err != nil {
			schemaErr = fmt.Errorf("action schema load failed for %s: %w", kind, err)
			return
		}
		compiled, err := c.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("action schema compile failed for %s: %w", kind, err)
			return
		}
		schemas[kind] = compiled
	}
}

// CheckParams validates the action's params against its vocabulary schema.
func CheckParams(a Action) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	sch, ok := schemas[a.Name]
	if !ok {
		return fmt.Errorf("unknown action %q", a.Name)
	}

	// Round-trip through JSON so values built in Go look like decoded JSON.
	data, err := json.Marshal(a.Params)
	if err != nil {
		return fmt.Errorf("params not serializable: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("params not serializable: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("invalid params for %s: %w", a.Name, err)
	}
	return nil
}
