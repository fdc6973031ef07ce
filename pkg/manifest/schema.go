package manifest

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Per-runtime JSON Schemas enforcing the stable key set contract: every key
// required, no extras. Sentinel values are legal; missing keys are not.
var schemaSources = map[RuntimeType]string{
	RuntimeKubernetes: `{
		"type": "object",
		"properties": {
			"pod_name":  {"type": "string", "minLength": 1},
			"namespace": {"type": "string", "minLength": 1},
			"node_name": {"type": "string", "minLength": 1}
		},
		"required": ["pod_name", "namespace", "node_name"],
		"additionalProperties": false
	}`,
	RuntimeServerless: `{
		"type": "object",
		"properties": {
			"function_name": {"type": "string", "minLength": 1},
			"region":        {"type": "string", "minLength": 1}
		},
		"required": ["function_name", "region"],
		"additionalProperties": false
	}`,
	RuntimeEdge: `{
		"type": "object",
		"properties": {
			"device_id": {"type": "string", "minLength": 1},
			"location":  {"type": "string", "minLength": 1}
		},
		"required": ["device_id", "location"],
		"additionalProperties": false
	}`,
}

var schemas = compileSchemas()

func compileSchemas() map[RuntimeType]*jsonschema.Schema {
	compiled := make(map[RuntimeType]*jsonschema.Schema, len(schemaSources))
	for rt, src := range schemaSources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://noesis.schemas.local/manifest/%s.schema.json", rt)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			panic(fmt.Sprintf("manifest: load schema for %s: %v", rt, err))
		}
		s, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("manifest: compile schema for %s: %v", rt, err))
		}
		compiled[rt] = s
	}
	return compiled
}

// Validate checks that m carries exactly the stable key set for rt.
func Validate(rt RuntimeType, m map[string]string) error {
	schema, ok := schemas[rt]
	if !ok {
		return fmt.Errorf("manifest: no schema for runtime type %q", rt)
	}

	// jsonschema validates decoded JSON values, not Go string maps.
	doc := make(map[string]any, len(m))
	for k, v := range m {
		doc[k] = v
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("manifest: %s manifest invalid: %w", rt, err)
	}
	return nil
}
