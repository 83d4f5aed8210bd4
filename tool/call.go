package tool

import (
	"context"
	"encoding"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"

	"github.com/casualjim/roost/pkg/reflectx"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/types"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Result is the outcome of a tool call as it is reported back to the model.
type Result struct {
	Value            string
	ContextVariables types.ContextVars
}

// Call invokes the tool with the JSON arguments produced by a model.
// context.Context and types.ContextVars parameters are injected.
func Call(ctx context.Context, def Definition, arguments string, contextVars types.ContextVars) (result Result, err error) {
	if !reflectx.IsFunction(def.Function) {
		return Result{}, fmt.Errorf("tool %s has no function", def.Name)
	}

	val := reflect.ValueOf(def.Function)
	typ := val.Type()
	args := gjson.Parse(arguments)

	callArgs := make([]reflect.Value, typ.NumIn())
	modelIdx := 0
	for i := range callArgs {
		paramType := typ.In(i)
		switch {
		case reflectx.Is[types.ContextVars](paramType):
			callArgs[i] = reflect.ValueOf(contextVars)
			continue
		case paramType == reflect.TypeFor[context.Context]():
			callArgs[i] = reflect.ValueOf(ctx)
			continue
		}

		name := def.paramName(modelIdx)
		modelIdx++
		arg, err := argumentValue(args.Get(name), paramType)
		if err != nil {
			return Result{}, fmt.Errorf("tool %s: argument %s: %w", def.Name, name, err)
		}
		callArgs[i] = arg
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()

	results := val.Call(callArgs)
	return toResult(results)
}

func argumentValue(v gjson.Result, paramType reflect.Type) (reflect.Value, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return reflect.Zero(paramType), nil
	}

	raw := reflect.ValueOf(v.Value())
	if raw.IsValid() && raw.Type().ConvertibleTo(paramType) && raw.Kind() != reflect.Map && raw.Kind() != reflect.Slice {
		return raw.Convert(paramType), nil
	}

	target := reflect.New(paramType)
	if err := json.Unmarshal([]byte(v.Raw), target.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return target.Elem(), nil
}

func toResult(results []reflect.Value) (Result, error) {
	var out Result
	for _, res := range results {
		if !res.IsValid() {
			continue
		}
		if res.Kind() == reflect.Interface && res.IsNil() {
			continue
		}
		switch v := res.Interface().(type) {
		case error:
			return Result{}, v
		case types.ContextVars:
			out.ContextVariables = v
		default:
			s, err := stringify(v)
			if err != nil {
				return Result{}, err
			}
			out.Value = s
		}
	}
	return out, nil
}

func stringify(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), nil
	case float32, float64:
		return strconv.FormatFloat(reflect.ValueOf(v).Float(), 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case encoding.TextMarshaler:
		b, err := v.MarshalText()
		if err != nil {
			slog.Error("marshalling tool result", slogx.Error(err))
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			slog.Error("marshalling tool result", slogx.Error(err))
			return "", err
		}
		return string(b), nil
	}
}
