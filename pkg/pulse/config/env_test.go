package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
)

func TestSanitizeEnvVarName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PATH", "PATH"},
		{"MY_VAR", "MY_VAR"},
		{"my.var", "my_var"},
		{"1VAR", "_VAR"},
		{"VAR.WITH.DOTS", "VAR_WITH_DOTS"},
		{"", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeEnvVarName(tt.input))
		})
	}
}

func TestGetEnvObject(t *testing.T) {
	t.Setenv("PULSE_TEST_VALUE", "hello")

	env := mustAttr(t, GetEnvObject(), "PULSE_TEST_VALUE")
	assert.Equal(t, cty.StringVal("hello"), env)
}

func mustAttr(t *testing.T, obj cty.Value, name string) cty.Value {
	t.Helper()
	if !obj.Type().HasAttribute(name) {
		t.Fatalf("expected attribute %s", name)
	}
	return obj.GetAttr(name)
}
