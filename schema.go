package maestro

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool arguments are validated against the tool's Parameters schema
// before Execute is invoked; a validation failure becomes an error tool
// message without calling the executor. Compiled schemas are cached by
// schema text since tools are long-lived and called repeatedly.
var schemaCache sync.Map // schema text -> *jsonschema.Schema

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateToolArgs checks args against the tool's parameter schema.
// A tool without a schema accepts anything. A nil/empty argument object
// is validated as {} so schemas without required fields still pass.
func validateToolArgs(t Tool, args json.RawMessage) error {
	if len(t.Parameters) == 0 {
		return nil
	}
	schema, err := compileSchema(t.Parameters)
	if err != nil {
		return fmt.Errorf("tool %q: invalid parameter schema: %w", t.Name, err)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("tool %q: arguments are not valid JSON: %w", t.Name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tool %q: invalid arguments: %w", t.Name, err)
	}
	return nil
}
