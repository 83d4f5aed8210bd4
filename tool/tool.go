package tool

import (
	"context"
	"fmt"
	"reflect"

	"github.com/casualjim/roost/pkg/reflectx"
	"github.com/casualjim/roost/types"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a Go function an agent may call.
type Definition struct {
	Name        string
	Description string
	// Parameters maps positional names (param0, param1, ...) to the names the
	// model sees. Context and ContextVars parameters are not counted.
	Parameters map[string]string
	Function   any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema returns the tool name and the JSON schema of its arguments.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	name := td.Name
	if name == "" {
		name = reflectx.FunctionName(td.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	typ := reflect.TypeOf(td.Function)
	if typ == nil || typ.Kind() != reflect.Func {
		return name, schema
	}

	var required []string
	for i, paramType := range modelParams(typ) {
		paramName := td.paramName(i)
		propSchema := functionReflector.ReflectFromType(paramType)
		propSchema.Version = ""
		schema.Properties.Set(paramName, propSchema)
		required = append(required, paramName)
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return name, schema
}

func (td Definition) paramName(i int) string {
	key := fmt.Sprintf("param%d", i)
	if p, ok := td.Parameters[key]; ok && p != "" {
		return p
	}
	return key
}

// modelParams lists the parameter types the model has to fill in.
func modelParams(typ reflect.Type) []reflect.Type {
	var params []reflect.Type
	for i := 0; i < typ.NumIn(); i++ {
		if injected(typ.In(i)) {
			continue
		}
		params = append(params, typ.In(i))
	}
	return params
}

func injected(t reflect.Type) bool {
	return reflectx.Is[types.ContextVars](t) || t == reflect.TypeFor[context.Context]()
}

type Option = opts.Option[Definition]

// Must is New that panics on error.
func Must(f any, options ...Option) Definition {
	def, err := New(f, options...)
	if err != nil {
		panic(err)
	}
	return def
}

// New creates a tool definition for f. The name defaults to the function name.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

var (
	Name        = opts.ForName[Definition, string]("Name")
	Description = opts.ForName[Definition, string]("Description")
)

// Parameters names the model-facing parameters of the function in order.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
