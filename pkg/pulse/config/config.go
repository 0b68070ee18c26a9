package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/insightwire/pulse/pkg/pulse/client"
	"github.com/insightwire/pulse/pkg/pulse/config/functions"
	"github.com/robfig/cron/v3"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
)

type ConfigBuilder struct {
	logger        *zap.Logger
	sources       []any
	blockHandlers map[string]BlockHandler
}

type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	Endpoints map[string]*client.Client
	Triggers  map[string]*cron.Cron
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		logger:        zap.NewNop(),
		sources:       make([]any, 0),
		blockHandlers: GetBlockHandlers(),
	}
}

func (c *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	c.sources = append(c.sources, sources...)
	return c
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	config := &Config{
		Logger:    cb.logger,
		Constants: make(map[string]cty.Value),
		Endpoints: make(map[string]*client.Client),
		Triggers:  make(map[string]*cron.Cron),
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	userFuncs, nonFunctionBodies, addDiags := config.ExtractUserFunctions(bodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Functions, addDiags = config.GetFunctions(userFuncs)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	blocks, addDiags := cb.GetBlocks(nonFunctionBodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	// Add environment variables to the evaluation context
	config.Constants["env"] = GetEnvObject()

	// Constants is shared with the eval context, so values the const
	// handler adds later are visible to everything evaluated after it.
	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	// Preprocess blocks

	for _, block := range blocks {
		if handler, ok := cb.blockHandlers[block.Type]; ok {
			diags = diags.Extend(handler.Preprocess(block))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, handler := range cb.blockHandlers {
		diags = diags.Extend(handler.FinishPreprocessing(config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	// Process blocks. Block types are processed in a fixed order so
	// subscriptions and triggers can refer to endpoints by name.

	for _, blockType := range processOrder {
		handler := cb.blockHandlers[blockType]
		for _, block := range blocks {
			if block.Type == blockType {
				diags = diags.Extend(handler.Process(config, block))
			}
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, handler := range cb.blockHandlers {
		diags = diags.Extend(handler.FinishProcessing(config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Info("Config built successfully",
		zap.Int("endpoints", len(config.Endpoints)),
		zap.Int("triggers", len(config.Triggers)))

	return config, diags
}

// ExtractUserFunctions wraps the functions package ExtractUserFunctions.
// The eval context is resolved lazily because user functions are
// extracted before constants are evaluated.
func (c *Config) ExtractUserFunctions(bodies []hcl.Body) (map[string]function.Function, []hcl.Body, hcl.Diagnostics) {
	return functions.ExtractUserFunctions(bodies, func() *hcl.EvalContext {
		return c.evalCtx
	})
}

// GetFunctions wraps the functions package and adds config-specific functions
func (c *Config) GetFunctions(userFuncs map[string]function.Function) (map[string]function.Function, hcl.Diagnostics) {
	funcs := functions.GetStandardLibraryFunctions()
	diags := hcl.Diagnostics{}

	for name, function := range functions.GetLogFunctions(c.Logger) {
		funcs[name] = function
	}

	funcs["diff"] = functions.DiffFunc
	funcs["patch"] = functions.PatchFunc
	funcs["emit"] = EmitFunction(c)
	funcs["emitjson"] = EmitJSONFunction(c)
	funcs["typeof"] = functions.TypeOfFunc
	funcs["error"] = functions.ErrorFunc

	for name, function := range userFuncs {
		if _, exists := funcs[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate function",
				Detail:   fmt.Sprintf("Function %s is reserved and can't be overridden", name),
			})
			continue
		}
		funcs[name] = function
	}

	return funcs, diags
}

// Start connects every configured endpoint and starts every trigger
// schedule. Connection failures are handled by each endpoint's
// reconnect policy rather than reported here.
func (c *Config) Start(ctx context.Context) {
	for name, endpoint := range c.Endpoints {
		endpoint.Connect(ctx)
		c.Logger.Info("Endpoint started", zap.String("endpoint", name))
	}

	for name, trigger := range c.Triggers {
		trigger.Start()
		c.Logger.Info("Trigger started", zap.String("trigger", name))
	}
}

// Stop halts trigger schedules and disconnects endpoints. It waits for
// any trigger action already running to complete.
func (c *Config) Stop() {
	for name, trigger := range c.Triggers {
		stopCtx := trigger.Stop()
		<-stopCtx.Done()
		c.Logger.Info("Trigger stopped", zap.String("trigger", name))
	}

	for name, endpoint := range c.Endpoints {
		endpoint.Disconnect()
		c.Logger.Info("Endpoint stopped", zap.String("endpoint", name))
	}
}
