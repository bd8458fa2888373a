package maestro

import (
	"context"
	"encoding/json"
	"testing"
)

func schemaTool(schema string) Tool {
	return Tool{
		Name:       "t",
		Parameters: json.RawMessage(schema),
		Execute:    func(context.Context, json.RawMessage) (any, error) { return "ok", nil },
	}
}

func TestValidateToolArgs(t *testing.T) {
	tool := schemaTool(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 2, "pattern": "^[a-z]+$"},
			"count": {"type": "integer", "minimum": 1, "maximum": 10},
			"mode": {"type": "string", "enum": ["fast", "slow"]},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["name"],
		"additionalProperties": false
	}`)

	valid := []string{
		`{"name":"abc"}`,
		`{"name":"abc","count":5,"mode":"fast","tags":["x","y"]}`,
	}
	for _, v := range valid {
		if err := validateToolArgs(tool, json.RawMessage(v)); err != nil {
			t.Errorf("valid args %s rejected: %v", v, err)
		}
	}

	invalid := []string{
		`{}`,                           // missing required
		`{"name":"a"}`,                 // minLength
		`{"name":"ABC"}`,               // pattern
		`{"name":"abc","count":0}`,     // minimum
		`{"name":"abc","count":11}`,    // maximum
		`{"name":"abc","mode":"warp"}`, // enum
		`{"name":"abc","tags":[1]}`,    // items type
		`{"name":"abc","extra":true}`,  // additionalProperties
		`{"name":1}`,                   // property type
		`not json`,
	}
	for _, v := range invalid {
		if err := validateToolArgs(tool, json.RawMessage(v)); err == nil {
			t.Errorf("invalid args %s accepted", v)
		}
	}
}

func TestValidateToolArgsNoSchema(t *testing.T) {
	tool := Tool{Name: "free", Execute: func(context.Context, json.RawMessage) (any, error) { return "ok", nil }}
	if err := validateToolArgs(tool, json.RawMessage(`{"anything":1}`)); err != nil {
		t.Errorf("schemaless tool rejected args: %v", err)
	}
}

func TestValidateToolArgsEmptyArgs(t *testing.T) {
	tool := schemaTool(`{"type":"object","properties":{"x":{"type":"string"}}}`)
	if err := validateToolArgs(tool, nil); err != nil {
		t.Errorf("nil args rejected for schema without required: %v", err)
	}
}
