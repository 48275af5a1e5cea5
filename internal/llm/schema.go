package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a JSON schema from an instance of the response type.
func SchemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// SchemaText renders a schema for inclusion in a prompt.
func SchemaText(schema any) string {
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
