package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/insightwire/pulse/pkg/pulse/client"
)

type EndpointDefinition struct {
	Name              string               `hcl:",label"`
	URL               string               `hcl:"url"`
	Subprotocols      []string             `hcl:"subprotocols,optional"`
	Headers           map[string]string    `hcl:"headers,optional"`
	Authorization     string               `hcl:"authorization,optional"`
	DialTimeout       hcl.Expression       `hcl:"dial_timeout,optional"`
	HeartbeatInterval hcl.Expression       `hcl:"heartbeat_interval,optional"`
	WriteQueueSize    *int                 `hcl:"write_queue_size,optional"`
	Reconnect         *ReconnectDefinition `hcl:"reconnect,block"`
	DefRange          hcl.Range            `hcl:",def_range"`
}

type ReconnectDefinition struct {
	MaxAttempts *int           `hcl:"max_attempts,optional"`
	Delay       hcl.Expression `hcl:"delay,optional"`
	Factor      *float64       `hcl:"factor,optional"`
	MaxDelay    hcl.Expression `hcl:"max_delay,optional"`
	Jitter      *float64       `hcl:"jitter,optional"`
}

type EndpointBlockHandler struct {
	BlockHandlerBase

	defRanges map[string]hcl.Range
}

func NewEndpointBlockHandler() *EndpointBlockHandler {
	return &EndpointBlockHandler{
		defRanges: make(map[string]hcl.Range),
	}
}

func (h *EndpointBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	endpointDef := EndpointDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &endpointDef)
	if diags.HasErrors() {
		return diags
	}

	// Manually set the name from the block label since DecodeBody doesn't handle labels
	if len(block.Labels) > 0 {
		endpointDef.Name = block.Labels[0]
	}

	if existing, ok := h.defRanges[endpointDef.Name]; ok {
		return hcl.Diagnostics{
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Endpoint already defined",
				Detail:   fmt.Sprintf("Endpoint %s already defined at %s", endpointDef.Name, existing),
				Subject:  &endpointDef.DefRange,
			},
		}
	}
	h.defRanges[endpointDef.Name] = endpointDef.DefRange

	endpoint, addDiags := h.BuildEndpoint(config, &endpointDef)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	config.Endpoints[endpointDef.Name] = endpoint

	return diags
}

func (h *EndpointBlockHandler) BuildEndpoint(config *Config, endpointDef *EndpointDefinition) (*client.Client, hcl.Diagnostics) {
	diags := hcl.Diagnostics{}

	clientBuilder := client.NewClient().
		WithURL(endpointDef.URL).
		WithLogger(config.Logger)

	if len(endpointDef.Subprotocols) > 0 {
		clientBuilder = clientBuilder.WithSubprotocols(endpointDef.Subprotocols...)
	}

	for key, value := range endpointDef.Headers {
		clientBuilder = clientBuilder.WithHeader(key, value)
	}

	if endpointDef.Authorization != "" {
		clientBuilder = clientBuilder.WithAuthorization(endpointDef.Authorization)
	}

	if IsExpressionProvided(endpointDef.DialTimeout) {
		dialTimeout, addDiags := config.ParseDuration(endpointDef.DialTimeout)
		if addDiags.HasErrors() {
			return nil, diags.Extend(addDiags)
		}
		clientBuilder = clientBuilder.WithDialTimeout(dialTimeout)
	}

	if IsExpressionProvided(endpointDef.HeartbeatInterval) {
		heartbeatInterval, addDiags := config.ParseDuration(endpointDef.HeartbeatInterval)
		if addDiags.HasErrors() {
			return nil, diags.Extend(addDiags)
		}
		clientBuilder = clientBuilder.WithHeartbeatInterval(heartbeatInterval)
	}

	if endpointDef.WriteQueueSize != nil {
		clientBuilder = clientBuilder.WithWriteChannelSize(*endpointDef.WriteQueueSize)
	}

	if endpointDef.Reconnect != nil {
		policy, addDiags := config.buildReconnectPolicy(endpointDef.Reconnect)
		if addDiags.HasErrors() {
			return nil, diags.Extend(addDiags)
		}
		clientBuilder = clientBuilder.WithReconnectPolicy(policy)
	}

	endpoint, err := clientBuilder.Build()
	if err != nil {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Failed to create endpoint",
			Detail:   err.Error(),
			Subject:  &endpointDef.DefRange,
		})
	}

	return endpoint, diags
}

func (config *Config) buildReconnectPolicy(reconnectDef *ReconnectDefinition) (client.ReconnectPolicy, hcl.Diagnostics) {
	policy := client.DefaultReconnectPolicy()
	diags := hcl.Diagnostics{}

	if reconnectDef.MaxAttempts != nil {
		policy.MaxAttempts = *reconnectDef.MaxAttempts
	}

	if IsExpressionProvided(reconnectDef.Delay) {
		delay, addDiags := config.ParseDuration(reconnectDef.Delay)
		if addDiags.HasErrors() {
			return policy, diags.Extend(addDiags)
		}
		policy.BaseDelay = delay
	}

	if reconnectDef.Factor != nil {
		policy.Factor = *reconnectDef.Factor
	}

	if IsExpressionProvided(reconnectDef.MaxDelay) {
		maxDelay, addDiags := config.ParseDuration(reconnectDef.MaxDelay)
		if addDiags.HasErrors() {
			return policy, diags.Extend(addDiags)
		}
		policy.MaxDelay = maxDelay
	}

	if reconnectDef.Jitter != nil {
		policy.Jitter = *reconnectDef.Jitter
	}

	return policy, diags
}
