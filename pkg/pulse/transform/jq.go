package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/itchyny/gojq"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/insightwire/pulse/pkg/pulse/wire"
)

// isStruct returns true if the value is a struct or a pointer to a struct.
func isStruct(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Struct {
		return true
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return true
	}
	return false
}

// containsStructs returns true if the value is a slice or array whose
// elements are structs or pointers to structs.
func containsStructs(v any) bool {
	if v == nil {
		return false
	}

	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		elemType := t.Elem()
		if elemType.Kind() == reflect.Struct {
			return true
		}
		if elemType.Kind() == reflect.Ptr && elemType.Elem().Kind() == reflect.Struct {
			return true
		}
	}

	return false
}

// Jq creates a Func that applies a JQ query to envelope data.
//
// The query operates on the envelope data, which can be any
// JSON-serializable value, and has access to the envelope type as the
// $type variable. Runtime failures never break the stream: the envelope
// passes through unchanged (and is logged when a logger is given). A
// query that produces no results drops the envelope; multiple results
// are collected into an array.
//
// Data is normalized before the query runs:
//   - maps, slices of primitives, and primitives are used directly
//   - structs, *structs, and slices containing structs go through a
//     JSON round trip to become primitive maps
//   - strings and byte slices are parsed as JSON when valid, otherwise
//     treated as plain strings
//   - cty.Value data is converted with go2cty2go
//
// Example usage:
//
//	extractValue, err := Jq(".value", logger)
//	onlyCritical, err := Jq(`select(.severity == "critical")`, nil)
//	tagged, err := Jq("{data: ., source: $type}", logger)
func Jq(jqQuery string, logger *zap.Logger) (Func, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JQ query '%s': %w", jqQuery, err)
	}

	compiledQuery, err := gojq.Compile(query, gojq.WithVariables([]string{"$type"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JQ query '%s': %w", jqQuery, err)
	}

	return func(ctx context.Context, env *wire.Envelope) (*wire.Envelope, bool) {
		var jqInput any

		switch data := env.Data.(type) {
		case string:
			if err := json.Unmarshal([]byte(data), &jqInput); err != nil {
				jqInput = data
			}
		case []byte:
			if err := json.Unmarshal(data, &jqInput); err != nil {
				jqInput = string(data)
			}
		case cty.Value:
			var convErr error
			jqInput, convErr = go2cty2go.CtyToAny(data)
			if convErr != nil {
				if logger != nil {
					logger.Error("JQ transform: failed to convert cty.Value to Go type",
						zap.String("jq_query", jqQuery),
						zap.String("type", env.Type),
						zap.Error(convErr))
				}
				return env, true
			}
		default:
			if isStruct(data) || containsStructs(data) {
				jsonBytes, err := json.Marshal(data)
				if err != nil {
					if logger != nil {
						logger.Error("JQ transform: failed to marshal struct to JSON",
							zap.String("jq_query", jqQuery),
							zap.String("type", env.Type),
							zap.String("data_type", fmt.Sprintf("%T", data)),
							zap.Error(err))
					}
					return env, true
				}
				if err := json.Unmarshal(jsonBytes, &jqInput); err != nil {
					if logger != nil {
						logger.Error("JQ transform: failed to unmarshal JSON back to Go types",
							zap.String("jq_query", jqQuery),
							zap.String("type", env.Type),
							zap.String("data_type", fmt.Sprintf("%T", data)),
							zap.Error(err))
					}
					return env, true
				}
			} else {
				jqInput = data
			}
		}

		// The envelope type binds to $type, matching the order given to
		// WithVariables.
		iter := compiledQuery.RunWithContext(ctx, jqInput, env.Type)

		var results []any
		for {
			result, hasResult := iter.Next()
			if !hasResult {
				break
			}

			if execErr, ok := result.(error); ok {
				if logger != nil {
					logger.Error("JQ transform: execution error",
						zap.String("jq_query", jqQuery),
						zap.String("type", env.Type),
						zap.Error(execErr))
				}
				return env, true
			}

			results = append(results, result)
		}

		if len(results) == 0 {
			return nil, false
		}

		var newData any
		if len(results) == 1 {
			newData = results[0]
		} else {
			newData = results
		}

		return &wire.Envelope{
			Type:      env.Type,
			Data:      newData,
			Timestamp: env.Timestamp,
		}, true
	}, nil
}
