package tool

import (
	"context"
	"reflect"
	"testing"

	"github.com/casualjim/roost/types"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func searchWeb(query string) string { return query }

func TestMust(t *testing.T) {
	t.Run("valid function", func(t *testing.T) {
		assert.NotPanics(t, func() {
			def := Must(searchWeb)
			assert.Equal(t, reflect.ValueOf(searchWeb).Pointer(), reflect.ValueOf(def.Function).Pointer())
			assert.Equal(t, "searchWeb", def.Name)
		})
	})

	t.Run("invalid function", func(t *testing.T) {
		assert.Panics(t, func() {
			Must("not a function")
		})
	})
}

func TestOptions(t *testing.T) {
	def, err := New(searchWeb,
		Name("search_web"),
		Description("Search the web for recent news"),
		Parameters("query"),
	)
	require.NoError(t, err)

	assert.Equal(t, "search_web", def.Name)
	assert.Equal(t, "Search the web for recent news", def.Description)
	assert.Equal(t, map[string]string{"param0": "query"}, def.Parameters)
}

func TestParameters(t *testing.T) {
	tests := []struct {
		name       string
		parameters []string
		want       map[string]string
	}{
		{name: "no parameters", parameters: []string{}, want: map[string]string{}},
		{name: "single parameter", parameters: []string{"ticker"}, want: map[string]string{"param0": "ticker"}},
		{
			name:       "multiple parameters",
			parameters: []string{"ticker", "period"},
			want:       map[string]string{"param0": "ticker", "param1": "period"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := New(func() {}, Parameters(tt.parameters...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.Parameters)
		})
	}
}

func TestDefinition_ToNameAndSchema(t *testing.T) {
	single := orderedmap.New[string, *jsonschema.Schema]()
	single.Set("query", &jsonschema.Schema{Type: "string"})

	injected := orderedmap.New[string, *jsonschema.Schema]()
	injected.Set("ticker", &jsonschema.Schema{Type: "string"})
	injected.Set("years", &jsonschema.Schema{Type: "integer"})

	tests := []struct {
		name       string
		tool       Definition
		wantName   string
		wantSchema *jsonschema.Schema
	}{
		{
			name: "basic tool",
			tool: Definition{
				Name:       "search",
				Parameters: map[string]string{"param0": "query"},
				Function:   func(s string) string { return s },
			},
			wantName: "search",
			wantSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: single,
				Required:   []string{"query"},
			},
		},
		{
			name: "context and context vars are not model parameters",
			tool: Definition{
				Name:       "company",
				Parameters: map[string]string{"param0": "ticker", "param1": "years"},
				Function: func(_ context.Context, ticker string, _ types.ContextVars, years int) string {
					return ticker
				},
			},
			wantName: "company",
			wantSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: injected,
				Required:   []string{"ticker", "years"},
			},
		},
		{
			name:     "no parameters",
			tool:     Definition{Name: "now", Function: func() string { return "" }},
			wantName: "now",
			wantSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: orderedmap.New[string, *jsonschema.Schema](),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName, gotSchema := tt.tool.ToNameAndSchema()
			assert.Equal(t, tt.wantName, gotName)
			assert.Equal(t, tt.wantSchema, gotSchema)
		})
	}
}
