package flow

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Delta is a partial state update returned by a step. Fields that are not
// present keep their current value.
type Delta map[string]any

// FieldDef declares one named, typed field of the flow state.
type FieldDef struct {
	name string
	typ  reflect.Type
	def  any
}

// Field declares a state field with its default value. The type parameter
// fixes the type every delta for this field has to conform to.
func Field[T any](name string, def T) FieldDef {
	return FieldDef{name: name, typ: reflect.TypeFor[T](), def: def}
}

func (f FieldDef) Name() string       { return f.name }
func (f FieldDef) Type() reflect.Type { return f.typ }
func (f FieldDef) Default() any       { return f.def }

type schema struct {
	fields *orderedmap.OrderedMap[string, FieldDef]
}

func newSchema() *schema {
	return &schema{fields: orderedmap.New[string, FieldDef]()}
}

func (s *schema) add(f FieldDef) error {
	if f.name == "" {
		return &ConfigurationError{Err: fmt.Errorf("%w: empty field name", ErrUnknownField)}
	}
	if _, present := s.fields.Get(f.name); present {
		return &ConfigurationError{Err: fmt.Errorf("state field %q declared twice", f.name)}
	}
	s.fields.Set(f.name, f)
	return nil
}

func (s *schema) names() []string {
	names := make([]string, 0, s.fields.Len())
	for pair := s.fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// State is the mutable record shared by all steps of one flow invocation.
type State struct {
	mu     sync.RWMutex
	schema *schema
	values map[string]any
}

func newState(sc *schema, inputs map[string]any) (*State, error) {
	st := &State{
		schema: sc,
		values: make(map[string]any, sc.fields.Len()),
	}
	for pair := sc.fields.Oldest(); pair != nil; pair = pair.Next() {
		v, err := coerce(pair.Value.def, pair.Value.typ)
		if err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("default for %q: %w", pair.Key, err)}
		}
		st.values[pair.Key] = v
	}
	if err := st.Apply(Delta(inputs)); err != nil {
		return nil, err
	}
	return st, nil
}

// Get returns the current value of a field.
func (s *State) Get(field string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[field]
	return v, ok
}

// Apply merges a delta into the state. The delta is validated as a whole
// before anything is written, so a rejected delta leaves the state untouched.
func (s *State) Apply(delta Delta) error {
	values, err := s.convert(delta)
	if err != nil {
		return err
	}
	s.commit(values)
	return nil
}

func (s *State) convert(delta Delta) (map[string]any, error) {
	converted := make(map[string]any, len(delta))
	for _, name := range slices.Sorted(maps.Keys(delta)) {
		def, known := s.schema.fields.Get(name)
		if !known {
			return nil, &ConfigurationError{Err: fmt.Errorf("%w: %q", ErrUnknownField, name)}
		}
		v, err := coerce(delta[name], def.typ)
		if err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("field %q: %w", name, err)}
		}
		converted[name] = v
	}
	return converted, nil
}

func (s *State) commit(values ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		maps.Copy(s.values, v)
	}
}

// Snapshot returns a read-only copy of the current values.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		values: maps.Clone(s.values),
		order:  s.schema.names(),
	}
}

func coerce(v any, typ reflect.Type) (any, error) {
	if v == nil {
		return reflect.Zero(typ).Interface(), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(typ) {
		if typ.Kind() == reflect.Interface {
			return v, nil
		}
		return rv.Convert(typ).Interface(), nil
	}

	if rv.Kind() == reflect.String && typ.Kind() == reflect.String {
		return rv.Convert(typ).Interface(), nil
	}

	if isNumeric(rv.Kind()) && isNumeric(typ.Kind()) {
		if isInteger(typ.Kind()) && isFloat(rv.Kind()) && rv.Float() != float64(int64(rv.Float())) {
			return nil, fmt.Errorf("%w: %v is not a whole number", ErrFieldType, v)
		}
		if !fits(rv, typ) {
			return nil, fmt.Errorf("%w: %v overflows %s", ErrFieldType, v, typ)
		}
		return rv.Convert(typ).Interface(), nil
	}

	switch typ.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Pointer:
		switch rv.Kind() {
		case reflect.Map, reflect.Slice, reflect.Struct:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFieldType, err)
			}
			target := reflect.New(typ)
			if err := json.Unmarshal(data, target.Interface()); err != nil {
				return nil, fmt.Errorf("%w: cannot use %T as %s: %w", ErrFieldType, v, typ, err)
			}
			return target.Elem().Interface(), nil
		}
	}

	return nil, fmt.Errorf("%w: cannot use %T as %s", ErrFieldType, v, typ)
}

// fits reports whether the numeric value rv converts to typ without wrapping.
func fits(rv reflect.Value, typ reflect.Type) bool {
	target := reflect.Zero(typ)
	switch {
	case isFloat(typ.Kind()):
		return !isFloat(rv.Kind()) || !target.OverflowFloat(rv.Float())
	case isSigned(typ.Kind()):
		switch {
		case isSigned(rv.Kind()):
			return !target.OverflowInt(rv.Int())
		case isFloat(rv.Kind()):
			f := rv.Float()
			return f >= math.MinInt64 && f < math.MaxInt64 && !target.OverflowInt(int64(f))
		default:
			u := rv.Uint()
			return u <= math.MaxInt64 && !target.OverflowInt(int64(u))
		}
	default:
		switch {
		case isSigned(rv.Kind()):
			return rv.Int() >= 0 && !target.OverflowUint(uint64(rv.Int()))
		case isFloat(rv.Kind()):
			f := rv.Float()
			return f >= 0 && f < math.MaxUint64 && !target.OverflowUint(uint64(f))
		default:
			return !target.OverflowUint(rv.Uint())
		}
	}
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool { return isInteger(k) || isFloat(k) }

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Snapshot is an immutable view of the flow state handed to step bodies.
// Values are shallow copies: steps must return new slices and maps in their
// delta rather than mutating the ones they read.
type Snapshot struct {
	values map[string]any
	order  []string
}

func (s Snapshot) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Fields lists the field names in declaration order.
func (s Snapshot) Fields() []string { return slices.Clone(s.order) }

// Map returns a copy of the snapshot values.
func (s Snapshot) Map() map[string]any { return maps.Clone(s.values) }

func (s Snapshot) IsZero() bool { return s.values == nil }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, any]()
	for _, name := range s.order {
		om.Set(name, s.values[name])
	}
	return json.Marshal(om)
}

func (s Snapshot) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", s.values)
	}
	return string(b)
}

// Value returns the field as T, or the zero value when the field is absent
// or holds another type.
func Value[T any](s Snapshot, field string) T {
	v, _ := Lookup[T](s, field)
	return v
}

func Lookup[T any](s Snapshot, field string) (T, bool) {
	var zero T
	v, ok := s.values[field]
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		return zero, false
	}
	return tv, true
}

// Decode copies the snapshot into a struct, matching fields by their json names.
func Decode[T any](s Snapshot) (T, error) {
	var out T
	data, err := json.Marshal(s.values)
	if err != nil {
		return out, fmt.Errorf("encode state: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode state into %T: %w", out, err)
	}
	return out, nil
}
