package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/rickb777/date/period"
	"github.com/zclconf/go-cty/cty"
)

// IsExpressionProvided checks if an HCL expression was actually
// provided in the configuration. HCL creates empty expression objects
// for optional fields that aren't specified, but empty expressions
// have a zero-length source range.
func IsExpressionProvided(expr hcl.Expression) bool {
	return expr != nil && expr.Range().End.Byte > expr.Range().Start.Byte
}

// ParseDuration parses a duration from an HCL expression. It supports
// three formats:
//  1. Numbers (interpreted as seconds)
//  2. Strings starting with "P" (ISO 8601 periods, e.g. "PT30S")
//  3. Other strings (Go's native duration parsing, e.g. "30s")
func (c *Config) ParseDuration(expr hcl.Expression) (time.Duration, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	val, evalDiags := expr.Value(c.evalCtx)
	diags = diags.Extend(evalDiags)
	if evalDiags.HasErrors() {
		return 0, diags
	}

	switch val.Type() {
	case cty.Number:
		seconds, accuracy := val.AsBigFloat().Float64()
		if accuracy != big.Exact {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "Duration precision loss",
				Detail:   "The number provided for duration may have lost precision when converted to seconds",
				Subject:  expr.Range().Ptr(),
			})
		}
		if seconds < 0 {
			return 0, diags.Append(negativeDurationDiag(expr))
		}
		return time.Duration(seconds * float64(time.Second)), diags

	case cty.String:
		str := strings.TrimSpace(val.AsString())

		if strings.HasPrefix(str, "P") {
			p, err := period.Parse(str)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid ISO 8601 period",
					Detail:   fmt.Sprintf("Failed to parse ISO 8601 period '%s': %v", str, err),
					Subject:  expr.Range().Ptr(),
				})
				return 0, diags
			}
			if p.IsNegative() {
				return 0, diags.Append(negativeDurationDiag(expr))
			}
			return p.DurationApprox(), diags
		}

		timeDuration, err := time.ParseDuration(str)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid duration format",
				Detail:   fmt.Sprintf("Failed to parse duration '%s': %v. Expected a number (seconds), ISO 8601 period (e.g., 'PT5M'), or Go duration (e.g., '5m')", str, err),
				Subject:  expr.Range().Ptr(),
			})
			return 0, diags
		}
		if timeDuration < 0 {
			return 0, diags.Append(negativeDurationDiag(expr))
		}
		return timeDuration, diags

	default:
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid duration type",
			Detail:   fmt.Sprintf("Duration must be a number (seconds) or string, got %s", val.Type().FriendlyName()),
			Subject:  expr.Range().Ptr(),
		})
		return 0, diags
	}
}

func negativeDurationDiag(expr hcl.Expression) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid duration",
		Detail:   "Duration must be positive",
		Subject:  expr.Range().Ptr(),
	}
}

// IsConstantExpression reports whether the expression can be evaluated
// without any context, returning its value if so.
func IsConstantExpression(expr hcl.Expression) (cty.Value, bool) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, false
	}

	return val, true
}
