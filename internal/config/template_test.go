package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type templateInner struct {
	Value string `template:""`
}

type templateFixture struct {
	Plain    string `template:""`
	Skipped  string `template:"-"`
	Untagged string
	List     []string `template:""`
	Headers  map[string]string
	Inner    templateInner
	InnerPtr *templateInner
	NilPtr   *templateInner
	internal string
}

func TestExpand(t *testing.T) {
	vars := map[string]string{"HOST": "example.com", "PORT": "443"}

	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr string
	}{
		{name: "no references", input: "plain", expected: "plain"},
		{name: "braced reference", input: "https://${HOST}", expected: "https://example.com"},
		{name: "multiple references", input: "${HOST}:${PORT}", expected: "example.com:443"},
		{name: "path placeholder untouched", input: "/api/players/{id}", expected: "/api/players/{id}"},
		{name: "unknown reference", input: "${NOPE}", expectErr: "NOPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input, vars)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpandTemplates(t *testing.T) {
	vars := map[string]string{"A": "alpha", "B": "beta"}

	t.Run("walks tagged fields", func(t *testing.T) {
		in := templateFixture{
			Plain:    "${A}",
			Skipped:  "${A}",
			Untagged: "${A}",
			List:     []string{"${A}", "${B}"},
			Headers:  map[string]string{"X": "${B}"},
			Inner:    templateInner{Value: "${B}"},
			InnerPtr: &templateInner{Value: "${A}-${B}"},
			internal: "${A}",
		}

		require.NoError(t, ExpandTemplates(&in, vars))

		assert.Equal(t, "alpha", in.Plain)
		assert.Equal(t, "${A}", in.Skipped)
		assert.Equal(t, "${A}", in.Untagged)
		assert.Equal(t, []string{"alpha", "beta"}, in.List)
		assert.Equal(t, "beta", in.Headers["X"])
		assert.Equal(t, "beta", in.Inner.Value)
		assert.Equal(t, "alpha-beta", in.InnerPtr.Value)
		assert.Nil(t, in.NilPtr)
		assert.Equal(t, "${A}", in.internal)
	})

	t.Run("errors are collected", func(t *testing.T) {
		in := templateFixture{
			Plain:   "${MISSING_ONE}",
			Headers: map[string]string{"X": "${MISSING_TWO}"},
		}

		err := ExpandTemplates(&in, vars)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MISSING_ONE")
		assert.Contains(t, err.Error(), "MISSING_TWO")
	})

	t.Run("nil pointer is a no-op", func(t *testing.T) {
		var in *templateFixture
		assert.NoError(t, ExpandTemplates(in, vars))
	})
}
