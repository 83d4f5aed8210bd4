package jsonx

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	Title   string   `json:"title"`
	Hashtag []string `json:"hashtag"`
}

func TestToDynamicJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr string
	}{
		{
			name:  "struct",
			input: post{Title: "Go", Hashtag: []string{"#go"}},
			want:  map[string]any{"title": "Go", "hashtag": []any{"#go"}},
		},
		{
			name:  "nil map",
			input: map[string]int(nil),
			want:  map[string]any{},
		},
		{
			name:    "channel",
			input:   make(chan int),
			wantErr: "encode chan int",
		},
		{
			name:    "not an object",
			input:   []int{1, 2},
			wantErr: "decode []int as object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDynamicJSON(tt.input)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToDynamicJSON_Schema(t *testing.T) {
	r := jsonschema.Reflector{DoNotReference: true}
	got, err := ToDynamicJSON(r.Reflect(post{}))
	require.NoError(t, err)

	assert.Equal(t, "object", got["type"])
	props, ok := got["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "title")
	assert.Contains(t, props, "hashtag")
}
