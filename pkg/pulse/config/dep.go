package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/heimdalr/dag"
)

// ExtractReferencesFromAttribute returns the dotted names of all
// variables an attribute expression refers to.
func ExtractReferencesFromAttribute(attr *hcl.Attribute) []string {
	var refs []string

	for _, traversal := range attr.Expr.Variables() {
		if len(traversal) > 0 {
			ref := traversal.RootName()
			for _, step := range traversal[1:] {
				if attr, ok := step.(hcl.TraverseAttr); ok {
					ref += "." + attr.Name
				}
			}
			refs = append(refs, ref)
		}
	}

	return refs
}

// SortAttributesByDependencies returns the attributes topologically
// sorted so every attribute is evaluated after the attributes it
// references. Cycles are errors.
func SortAttributesByDependencies(attrs hcl.Attributes) ([]*hcl.Attribute, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	graph := dag.NewDAG()

	for _, attr := range attrs {
		err := graph.AddVertexByID(attr.Name, attr)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to add attribute to dependency graph",
				Detail:   fmt.Sprintf("Error adding attribute %s: %s", attr.Name, err),
				Subject:  &attr.NameRange,
			})
		}
	}

	for name, attr := range attrs {
		refs := ExtractReferencesFromAttribute(attr)

		for _, ref := range refs {
			// References to names outside this attribute set (env, functions
			// context) resolve from the evaluation context instead.
			if _, exists := attrs[ref]; !exists {
				continue
			}
			err := graph.AddEdge(ref, name)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Circular dependency detected",
					Detail:   fmt.Sprintf("Cannot add dependency from %s to %s: %s", ref, name, err),
					Subject:  &attr.Range,
				})
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	visitor := &attributeVertexVisitor{}
	graph.OrderedWalk(visitor)

	return visitor.attrs, diags
}

type attributeVertexVisitor struct {
	attrs []*hcl.Attribute
}

func (v *attributeVertexVisitor) Visit(vertex dag.Vertexer) {
	_, value := vertex.Vertex()
	v.attrs = append(v.attrs, value.(*hcl.Attribute))
}
