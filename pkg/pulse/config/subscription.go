package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/insightwire/pulse/pkg/pulse/client"
	"github.com/insightwire/pulse/pkg/pulse/transform"
	"github.com/insightwire/pulse/pkg/pulse/wire"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

type SubscriptionDefinition struct {
	Name       string         `hcl:",label"`
	Endpoint   string         `hcl:"endpoint"`
	Channels   []string       `hcl:"channels,optional"`
	On         string         `hcl:"on,optional"`
	Transforms hcl.Expression `hcl:"transforms,optional"`
	Action     hcl.Expression `hcl:"action,optional"`
	Disabled   bool           `hcl:"disabled,optional"`
	DefRange   hcl.Range      `hcl:",def_range"`
}

type SubscriptionBlockHandler struct {
	BlockHandlerBase
}

func NewSubscriptionBlockHandler() *SubscriptionBlockHandler {
	return &SubscriptionBlockHandler{}
}

func (h *SubscriptionBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	subscriptionDef := SubscriptionDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &subscriptionDef)
	if diags.HasErrors() {
		return diags
	}

	if subscriptionDef.Disabled {
		return nil
	}

	// Manually set the name from the block label since DecodeBody doesn't handle labels
	if len(block.Labels) > 0 {
		subscriptionDef.Name = block.Labels[0]
	}

	endpoint, ok := config.Endpoints[subscriptionDef.Endpoint]
	if !ok {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unknown endpoint",
				Detail:   fmt.Sprintf("Subscription %s refers to undefined endpoint %q", subscriptionDef.Name, subscriptionDef.Endpoint),
				Subject:  &subscriptionDef.DefRange,
			},
		}
	}

	if !IsExpressionProvided(subscriptionDef.Action) {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Missing action",
				Detail:   fmt.Sprintf("Subscription %s must have an action attribute", subscriptionDef.Name),
				Subject:  &subscriptionDef.DefRange,
			},
		}
	}

	actionHandler := &ActionHandler{
		config:           config,
		action:           subscriptionDef.Action,
		subscriptionName: subscriptionDef.Name,
	}

	var handler client.Handler = actionHandler.Handle

	if IsExpressionProvided(subscriptionDef.Transforms) {
		transforms, addDiags := config.GetTransforms(subscriptionDef.Transforms)
		diags = diags.Extend(addDiags)
		if diags.HasErrors() {
			return diags
		}

		handler = transform.Handler(transform.Chain(transforms...), handler)
	}

	pattern := subscriptionDef.On
	if pattern == "" {
		pattern = "#"
	}

	endpoint.On(pattern, handler)

	for _, channel := range subscriptionDef.Channels {
		endpoint.Subscribe(channel)
	}

	return diags
}

// ActionHandler evaluates a subscription action expression for each
// envelope the dispatcher routes to it.
type ActionHandler struct {
	config           *Config
	action           hcl.Expression
	subscriptionName string
}

func (a *ActionHandler) Handle(ctx context.Context, env wire.Envelope, fields map[string]string) error {
	ctyData, err := go2cty2go.AnyToCty(env.Data)
	if err != nil {
		return err
	}

	variables := map[string]cty.Value{
		"subscription_name": cty.StringVal(a.subscriptionName),
		"type":              cty.StringVal(env.Type),
		"data":              ctyData,
		"timestamp":         cty.StringVal(env.Timestamp.Format(time.RFC3339Nano)),
	}

	if len(fields) > 0 {
		ctyFields := make(map[string]cty.Value)
		for key, value := range fields {
			ctyFields[key] = cty.StringVal(value)
		}
		variables["fields"] = cty.ObjectVal(ctyFields)
	}

	evalCtx := a.config.evalCtx.NewChild()
	evalCtx.Variables = variables

	a.config.Logger.Debug("Evaluating subscription action",
		zap.String("subscription", a.subscriptionName),
		zap.String("type", env.Type))

	_, diags := a.action.Value(evalCtx)
	if diags.HasErrors() {
		return diags
	}

	return nil
}
