package crew

import (
	"context"
	"fmt"
	"reflect"

	"github.com/casualjim/roost/provider"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
)

// Structured outputs only accept a subset of JSON schema.
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// ToJSONSchema reflects the response schema for T.
func ToJSONSchema[T any]() *jsonschema.Schema {
	var v T
	return reflector.Reflect(v)
}

// Typed runs the crew and asks the last task for JSON matching T.
func Typed[T any](ctx context.Context, c *Crew, inputs map[string]any) (T, Output, error) {
	var result T
	if reflect.TypeFor[T]().Kind() != reflect.Struct {
		return result, Output{}, fmt.Errorf("typed output needs a struct, got %T", result)
	}

	name := reflect.TypeFor[T]().Name()
	if name == "" {
		name = "output"
	}
	schema := &provider.StructuredOutput{
		Name:   name,
		Schema: ToJSONSchema[T](),
	}
	out, err := c.kickoff(ctx, inputs, schema)
	if err != nil {
		return result, out, err
	}
	if err := json.Unmarshal([]byte(out.Raw), &result); err != nil {
		return result, out, fmt.Errorf("crew %s: decode %s: %w", c.name, schema.Name, err)
	}
	return result, out, nil
}
