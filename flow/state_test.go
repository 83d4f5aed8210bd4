package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Goal   string  `json:"goal"`
	Budget float64 `json:"budget"`
}

type mode string

func testState(t *testing.T, inputs map[string]any) *State {
	t.Helper()
	sc := newSchema()
	for _, f := range []FieldDef{
		Field("count", 0),
		Field("score", 0.0),
		Field("title", ""),
		Field("tags", []string(nil)),
		Field("profile", profile{}),
		Field("mode", mode("growth")),
		Field[any]("raw", nil),
	} {
		require.NoError(t, sc.add(f))
	}
	st, err := newState(sc, inputs)
	require.NoError(t, err)
	return st
}

func TestState_Defaults(t *testing.T) {
	st := testState(t, nil)
	snap := st.Snapshot()

	assert.Equal(t, []string{"count", "score", "title", "tags", "profile", "mode", "raw"}, snap.Fields())
	assert.Equal(t, 0, Value[int](snap, "count"))
	assert.Equal(t, mode("growth"), Value[mode](snap, "mode"))
	assert.Nil(t, Value[[]string](snap, "tags"))

	raw, ok := snap.Get("raw")
	assert.True(t, ok)
	assert.Nil(t, raw)
}

func TestState_ApplyConversions(t *testing.T) {
	tests := []struct {
		name  string
		delta Delta
		field string
		want  any
	}{
		{"int from float64", Delta{"count": 3.0}, "count", 3},
		{"float from int", Delta{"score": 72}, "score", 72.0},
		{"named string", Delta{"mode": "value"}, "mode", mode("value")},
		{"struct from map", Delta{"profile": map[string]any{"goal": "retire", "budget": 1000}}, "profile", profile{Goal: "retire", Budget: 1000}},
		{"slice from []any", Delta{"tags": []any{"a", "b"}}, "tags", []string{"a", "b"}},
		{"nil resets to zero", Delta{"title": nil}, "title", ""},
		{"any keeps value", Delta{"raw": map[string]int{"x": 1}}, "raw", map[string]int{"x": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testState(t, map[string]any{"title": "before"})
			require.NoError(t, st.Apply(tt.delta))
			got, ok := st.Get(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestState_ApplyNumericRange(t *testing.T) {
	sc := newSchema()
	for _, f := range []FieldDef{
		Field[int8]("small", 0),
		Field[uint]("size", 0),
		Field[float32]("ratio", 0),
	} {
		require.NoError(t, sc.add(f))
	}

	tests := []struct {
		name    string
		delta   Delta
		wantErr bool
	}{
		{"int8 in range", Delta{"small": 127}, false},
		{"int8 overflow", Delta{"small": 300}, true},
		{"int8 underflow", Delta{"small": -129}, true},
		{"int8 from large float", Delta{"small": 1000.0}, true},
		{"uint from negative", Delta{"size": -1}, true},
		{"uint from negative float", Delta{"size": -2.0}, true},
		{"uint in range", Delta{"size": 42}, false},
		{"float32 overflow", Delta{"ratio": 1e300}, true},
		{"float32 in range", Delta{"ratio": 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newState(sc, nil)
			require.NoError(t, err)
			err = st.Apply(tt.delta)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFieldType)
				assert.Equal(t, map[string]any{"small": int8(0), "size": uint(0), "ratio": float32(0)}, st.Snapshot().Map())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestState_ApplyIsAllOrNothing(t *testing.T) {
	st := testState(t, map[string]any{"count": 1, "title": "kept"})

	err := st.Apply(Delta{"count": 2, "title": 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldType)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), `field "title"`)

	err = st.Apply(Delta{"count": 2, "bogus": true})
	assert.ErrorIs(t, err, ErrUnknownField)

	err = st.Apply(Delta{"count": 2.5})
	assert.ErrorIs(t, err, ErrFieldType)

	snap := st.Snapshot()
	assert.Equal(t, 1, Value[int](snap, "count"))
	assert.Equal(t, "kept", Value[string](snap, "title"))
}

func TestState_PartialUpdate(t *testing.T) {
	st := testState(t, map[string]any{"count": 7, "title": "hello"})
	require.NoError(t, st.Apply(Delta{"score": 80.5}))

	snap := st.Snapshot()
	assert.Equal(t, 7, Value[int](snap, "count"))
	assert.Equal(t, "hello", Value[string](snap, "title"))
	assert.InDelta(t, 80.5, Value[float64](snap, "score"), 0.0001)
}

func TestSnapshot_IsACopy(t *testing.T) {
	st := testState(t, nil)
	snap := st.Snapshot()

	require.NoError(t, st.Apply(Delta{"count": 9}))
	assert.Equal(t, 0, Value[int](snap, "count"))

	m := snap.Map()
	m["count"] = 100
	assert.Equal(t, 0, Value[int](snap, "count"))
}

func TestSnapshot_Lookup(t *testing.T) {
	snap := testState(t, map[string]any{"count": 4}).Snapshot()

	v, ok := Lookup[int](snap, "count")
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	_, ok = Lookup[string](snap, "count")
	assert.False(t, ok)

	_, ok = Lookup[int](snap, "missing")
	assert.False(t, ok)
	assert.Equal(t, "", Value[string](snap, "missing"))
}

func TestSnapshot_JSONAndDecode(t *testing.T) {
	snap := testState(t, map[string]any{
		"count":   2,
		"title":   "t",
		"profile": profile{Goal: "grow", Budget: 10},
	}).Snapshot()

	data, err := snap.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"score":0,"title":"t","tags":null,"profile":{"goal":"grow","budget":10},"mode":"growth","raw":null}`, string(data))
	assert.Equal(t, string(data), snap.String())

	type view struct {
		Count   int     `json:"count"`
		Title   string  `json:"title"`
		Profile profile `json:"profile"`
	}
	v, err := Decode[view](snap)
	require.NoError(t, err)
	assert.Equal(t, view{Count: 2, Title: "t", Profile: profile{Goal: "grow", Budget: 10}}, v)
}
