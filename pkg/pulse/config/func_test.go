package config

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

//go:embed testdata/emit.hcl
var emitConfig []byte

func TestEmitFunction(t *testing.T) {
	cfg, diags := NewConfig().WithSources(emitConfig).WithLogger(zap.NewNop()).Build()
	if diags.HasErrors() {
		t.Fatal(diags)
	}

	emit, ok := cfg.Functions["emit"]
	require.True(t, ok, "expected emit function to be registered")

	t.Run("unknown endpoint is an error", func(t *testing.T) {
		_, err := emit.Call([]cty.Value{
			cty.StringVal("missing"),
			cty.StringVal("status"),
			cty.StringVal("hello"),
		})
		assert.Error(t, err)
	})

	t.Run("disconnected endpoint rejects the send", func(t *testing.T) {
		result, err := emit.Call([]cty.Value{
			cty.StringVal("feed"),
			cty.StringVal("status"),
			cty.ObjectVal(map[string]cty.Value{"ok": cty.True}),
		})
		require.NoError(t, err)
		assert.Equal(t, cty.False, result)
	})
}

func TestReservedFunctionNames(t *testing.T) {
	source := []byte(`
function "emit" {
    params = [x]
    result = x
}
`)

	_, diags := NewConfig().WithSources(source).WithLogger(zap.NewNop()).Build()
	assert.True(t, diags.HasErrors(), "expected overriding a reserved function to fail")
}
