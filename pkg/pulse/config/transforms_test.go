package config

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/insightwire/pulse/pkg/pulse/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func transformsConfig() *Config {
	return &Config{
		Logger:  zap.NewNop(),
		evalCtx: &hcl.EvalContext{},
	}
}

func parseTransformsExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "failed to parse: %v", diags)
	return expr
}

func TestGetTransforms(t *testing.T) {
	config := transformsConfig()

	t.Run("single transform", func(t *testing.T) {
		expr := parseTransformsExpr(t, `add_type_prefix("app/")`)

		transforms, diags := config.GetTransforms(expr)
		require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
		require.Len(t, transforms, 1)

		env := &wire.Envelope{Type: "metrics", Timestamp: time.Now()}
		out, keep := transforms[0](context.Background(), env)
		assert.True(t, keep)
		assert.Equal(t, "app/metrics", out.Type)
	})

	t.Run("list of transforms", func(t *testing.T) {
		expr := parseTransformsExpr(t, `[drop_type_prefix("debug/"), add_type_prefix("app/")]`)

		transforms, diags := config.GetTransforms(expr)
		require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
		assert.Len(t, transforms, 2)

		_, keep := transforms[0](context.Background(), &wire.Envelope{Type: "debug/noise"})
		assert.False(t, keep)
	})

	t.Run("chain stops on drop", func(t *testing.T) {
		expr := parseTransformsExpr(t, `chain(drop_type_pattern("internal/#"), add_type_prefix("out/"))`)

		transforms, diags := config.GetTransforms(expr)
		require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
		require.Len(t, transforms, 1)

		_, keep := transforms[0](context.Background(), &wire.Envelope{Type: "internal/audit"})
		assert.False(t, keep)

		out, keep := transforms[0](context.Background(), &wire.Envelope{Type: "public/feed"})
		assert.True(t, keep)
		assert.Equal(t, "out/public/feed", out.Type)
	})

	t.Run("jq transform rewrites data", func(t *testing.T) {
		expr := parseTransformsExpr(t, `jq(".value")`)

		transforms, diags := config.GetTransforms(expr)
		require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
		require.Len(t, transforms, 1)

		env := &wire.Envelope{
			Type: "reading",
			Data: map[string]any{"value": 42.5},
		}
		out, keep := transforms[0](context.Background(), env)
		assert.True(t, keep)
		assert.Equal(t, 42.5, out.Data)
	})

	t.Run("invalid jq query is an error", func(t *testing.T) {
		expr := parseTransformsExpr(t, `jq("this is not jq")`)

		_, diags := config.GetTransforms(expr)
		assert.True(t, diags.HasErrors(), "expected errors, didn't get any")
	})

	t.Run("non-transform value is an error", func(t *testing.T) {
		expr := parseTransformsExpr(t, `"not a transform"`)

		_, diags := config.GetTransforms(expr)
		assert.True(t, diags.HasErrors(), "expected errors, didn't get any")
	})
}
