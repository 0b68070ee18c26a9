package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/insightwire/pulse/pkg/pulse/transform"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// TransformWrapper wraps a transform.Func for use in cty capsules
type TransformWrapper struct {
	Func transform.Func
}

// TransformCapsuleType is a cty capsule type for wrapping transform.Func instances
var TransformCapsuleType = cty.CapsuleWithOps("transform", reflect.TypeOf((*TransformWrapper)(nil)).Elem(), &cty.CapsuleOps{
	GoString: func(val interface{}) string {
		return fmt.Sprintf("transform(%p)", val)
	},
	TypeGoString: func(_ reflect.Type) string {
		return "Transform"
	},
})

// NewTransformCapsule creates a new cty capsule value wrapping a transform.Func
func NewTransformCapsule(transformFunc transform.Func) cty.Value {
	wrapper := &TransformWrapper{Func: transformFunc}
	return cty.CapsuleVal(TransformCapsuleType, wrapper)
}

// GetTransformFromCapsule extracts a transform.Func from a cty capsule value
func GetTransformFromCapsule(val cty.Value) (transform.Func, error) {
	if val.Type() != TransformCapsuleType {
		return nil, fmt.Errorf("expected transform capsule, got %s", val.Type().FriendlyName())
	}

	encapsulated := val.EncapsulatedValue()
	wrapper, ok := encapsulated.(*TransformWrapper)
	if !ok {
		return nil, fmt.Errorf("encapsulated value is not a TransformWrapper, got %T", encapsulated)
	}
	return wrapper.Func, nil
}

func (config *Config) GetTransforms(expr hcl.Expression) (transforms []transform.Func, diags hcl.Diagnostics) {
	evalCtx := config.getTransformExprEvalCtx()
	vals, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}

	return config.ctyToTransforms(expr, vals)
}

func (config *Config) ctyToTransforms(expr hcl.Expression, vals cty.Value) (transforms []transform.Func, diags hcl.Diagnostics) {
	// Accept both a single transform or a list/tuple of transforms
	if vals.Type() == TransformCapsuleType {
		transformFunc, err := GetTransformFromCapsule(vals)
		if err != nil {
			exprRange := expr.Range()
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to get transform from capsule",
				Detail:   err.Error(),
				Subject:  &exprRange,
			})
			return nil, diags
		}
		return []transform.Func{transformFunc}, diags
	} else if vals.Type().IsTupleType() || vals.Type().IsListType() {
		// handled below
	} else {
		exprRange := expr.Range()
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid type for transforms",
			Detail:   fmt.Sprintf("Expected a transform or list/tuple of transforms, got %s", vals.Type().FriendlyName()),
			Subject:  &exprRange,
		})
		return nil, diags
	}

	transforms = make([]transform.Func, 0, vals.LengthInt())

	for _, val := range vals.AsValueSlice() {
		transformFunc, err := GetTransformFromCapsule(val)
		if err != nil {
			exprRange := expr.Range()
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to get transform from capsule",
				Detail:   err.Error(),
				Subject:  &exprRange,
			})
			continue
		}
		transforms = append(transforms, transformFunc)
	}

	return transforms, diags
}

func (config *Config) getTransformExprEvalCtx() *hcl.EvalContext {
	ctx := config.evalCtx.NewChild()
	ctx.Functions = map[string]function.Function{
		"add_type_prefix":   AddTypePrefixTransform,
		"chain":             ChainTransformsTransform,
		"delta":             DeltaTransform,
		"drop_type_pattern": DropTypePatternTransform,
		"drop_type_prefix":  DropTypePrefixTransform,
		"if_pattern":        IfPatternTransform,
		"rate_limit":        RateLimitTransform,
		"jq":                config.makeJqTransform(),
	}

	return ctx
}

var DropTypePatternTransform = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return NewTransformCapsule(transform.DropTypePattern(args[0].AsString())), nil
	},
})

var DropTypePrefixTransform = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "prefix", Type: cty.String},
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return NewTransformCapsule(transform.DropTypePrefix(args[0].AsString())), nil
	},
})

var AddTypePrefixTransform = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "prefix", Type: cty.String},
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return NewTransformCapsule(transform.AddTypePrefix(args[0].AsString())), nil
	},
})

var ChainTransformsTransform = function.New(&function.Spec{
	Params: []function.Parameter{},
	VarParam: &function.Parameter{
		Name: "transforms",
		Type: cty.List(TransformCapsuleType),
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		var transforms []transform.Func
		for _, arg := range args {
			transformFunc, err := GetTransformFromCapsule(arg)
			if err != nil {
				return cty.NullVal(retType), err
			}
			transforms = append(transforms, transformFunc)
		}
		return NewTransformCapsule(transform.Chain(transforms...)), nil
	},
})

var IfPatternTransform = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
		{Name: "transform", Type: TransformCapsuleType},
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		transformFunc, err := GetTransformFromCapsule(args[1])
		if err != nil {
			return cty.NullVal(retType), err
		}
		return NewTransformCapsule(transform.IfPattern(args[0].AsString(), transformFunc)), nil
	},
})

var RateLimitTransform = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "interval", Type: cty.String},
	},
	Type: function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		interval, err := time.ParseDuration(args[0].AsString())
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid rate_limit interval: %w", err)
		}
		return NewTransformCapsule(transform.RateLimitByType(interval)), nil
	},
})

var DeltaTransform = function.New(&function.Spec{
	Params: []function.Parameter{},
	Type:   function.StaticReturnType(TransformCapsuleType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return NewTransformCapsule(transform.ModifyData(transform.Delta)), nil
	},
})

func (config *Config) makeJqTransform() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "jqQuery", Type: cty.String},
		},
		Type: function.StaticReturnType(TransformCapsuleType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			transformFunc, err := transform.Jq(args[0].AsString(), config.Logger)
			if err != nil {
				return cty.NilVal, err
			}
			return NewTransformCapsule(transformFunc), nil
		},
	})
}
