package config

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAttributes(t *testing.T, src string) hcl.Attributes {
	t.Helper()

	file, diags := hclsyntax.ParseConfig([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "failed to parse: %v", diags)

	attrs, diags := file.Body.JustAttributes()
	require.False(t, diags.HasErrors(), "failed to get attributes: %v", diags)

	return attrs
}

func TestSortAttributesByDependencies(t *testing.T) {
	attrs := parseAttributes(t, `
a = b
b = "base"
c = "${a} and ${b}"
`)

	sorted, diags := SortAttributesByDependencies(attrs)
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
	require.Len(t, sorted, 3)

	position := make(map[string]int)
	for i, attr := range sorted {
		position[attr.Name] = i
	}

	assert.Less(t, position["b"], position["a"])
	assert.Less(t, position["a"], position["c"])
}

func TestSortAttributesSkipsExternalReferences(t *testing.T) {
	// References to env and functions resolve from the evaluation
	// context, not from other attributes.
	attrs := parseAttributes(t, `
a = env.PATH
b = upper(a)
`)

	sorted, diags := SortAttributesByDependencies(attrs)
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags)
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].Name)
	assert.Equal(t, "b", sorted[1].Name)
}

func TestSortAttributesDetectsCycles(t *testing.T) {
	attrs := parseAttributes(t, `
a = b
b = a
`)

	_, diags := SortAttributesByDependencies(attrs)
	assert.True(t, diags.HasErrors(), "expected cycle to be reported")
}

func TestExtractReferencesFromAttribute(t *testing.T) {
	attrs := parseAttributes(t, `x = "${foo} ${bar.baz}"`)

	refs := ExtractReferencesFromAttribute(attrs["x"])
	assert.Contains(t, refs, "foo")
	assert.Contains(t, refs, "bar.baz")
}
