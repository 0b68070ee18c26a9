package config

import (
	"fmt"

	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// MessageConverter defines how to convert a cty.Value message before sending
type MessageConverter func(cty.Value) (any, error)

// createEmitFunction is a shared helper that creates emit functions with different message converters
func createEmitFunction(config *Config, converter MessageConverter) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "endpoint",
				Type: cty.String,
			},
			{
				Name: "type",
				Type: cty.String,
			},
			{
				Name: "message",
				Type: cty.DynamicPseudoType,
			},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			endpointName := args[0].AsString()
			messageType := args[1].AsString()
			message := args[2]

			endpoint, ok := config.Endpoints[endpointName]
			if !ok {
				return cty.False, fmt.Errorf("unknown endpoint %q", endpointName)
			}

			convertedMessage, err := converter(message)
			if err != nil {
				return cty.False, fmt.Errorf("failed to convert message: %w", err)
			}

			return cty.BoolVal(endpoint.Send(messageType, convertedMessage)), nil
		},
	})
}

// goMessageConverter converts the cty.Value to native Go types so the
// envelope codec serializes it as plain JSON.
func goMessageConverter(message cty.Value) (any, error) {
	return go2cty2go.CtyToAny(message)
}

// jsonMessageConverter converts the cty.Value to a JSON string
func jsonMessageConverter(message cty.Value) (any, error) {
	jsonBytes, err := ctyjson.Marshal(message, message.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cty value to JSON: %w", err)
	}

	return string(jsonBytes), nil
}

// EmitFunction returns a cty function that sends an envelope on a named endpoint
func EmitFunction(config *Config) function.Function {
	return createEmitFunction(config, goMessageConverter)
}

// EmitJSONFunction returns a cty function that sends a JSON string payload on a named endpoint
func EmitJSONFunction(config *Config) function.Function {
	return createEmitFunction(config, jsonMessageConverter)
}
