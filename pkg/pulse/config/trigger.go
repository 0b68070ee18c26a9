package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/robfig/cron/v3"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

type TriggerDefinition struct {
	Name     string                `hcl:",label"`
	Timezone string                `hcl:"timezone,optional"`
	At       []TriggerAtDefinition `hcl:"at,block"`
}

type TriggerAtDefinition struct {
	Schedule string         `hcl:"schedule,label"`
	Name     string         `hcl:"name,label"`
	Action   hcl.Expression `hcl:"action"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type TriggerBlockHandler struct {
	BlockHandlerBase
}

func NewTriggerBlockHandler() *TriggerBlockHandler {
	return &TriggerBlockHandler{}
}

func (h *TriggerBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	triggerDef := TriggerDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &triggerDef)
	if diags.HasErrors() {
		return diags
	}

	// Manually set the name from the block label since DecodeBody doesn't handle labels
	if len(block.Labels) > 0 {
		triggerDef.Name = block.Labels[0]
	}

	cronObj, addDiags := h.BuildTrigger(config, block, &triggerDef)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	config.Triggers[triggerDef.Name] = cronObj

	return diags
}

func (h *TriggerBlockHandler) BuildTrigger(config *Config, block *hcl.Block, triggerDef *TriggerDefinition) (*cron.Cron, hcl.Diagnostics) {
	cronLogger := NewZapCronLogger(config.Logger)

	cronParser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	if triggerDef.Timezone == "" {
		triggerDef.Timezone = "Local"
	}

	diags := hcl.Diagnostics{}

	location, err := time.LoadLocation(triggerDef.Timezone)
	if err != nil {
		diags = diags.Append(
			&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid timezone",
				Detail:   fmt.Sprintf("Invalid timezone: %s", triggerDef.Timezone),
				Subject:  &block.DefRange,
			},
		)
	}

	cronObj := cron.New(cron.WithLogger(cronLogger), cron.WithParser(cronParser), cron.WithLocation(location))

	for _, atBlock := range triggerDef.At {
		action := atBlock.Action
		if !IsExpressionProvided(action) {
			diags = diags.Append(
				&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid at block",
					Detail:   "Trigger at block must have an action attribute",
					Subject:  &atBlock.DefRange,
				},
			)
			continue
		}

		atAction := &AtAction{
			config:      config,
			action:      action,
			triggerName: triggerDef.Name,
			atName:      atBlock.Name,
		}

		if _, err := cronObj.AddJob(atBlock.Schedule, atAction); err != nil {
			diags = diags.Append(
				&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid schedule",
					Detail:   fmt.Sprintf("Invalid schedule %q: %v", atBlock.Schedule, err),
					Subject:  &atBlock.DefRange,
				},
			)
		}
	}

	return cronObj, diags
}

// AtAction evaluates a trigger action expression each time its schedule fires.
type AtAction struct {
	config      *Config
	action      hcl.Expression
	triggerName string
	atName      string
}

func (a *AtAction) Run() {
	a.config.Logger.Debug("Executing action", zap.String("trigger", a.triggerName), zap.String("at", a.atName))

	evalCtx := a.config.evalCtx.NewChild()
	evalCtx.Variables = map[string]cty.Value{
		"trigger_name": cty.StringVal(a.triggerName),
		"at_name":      cty.StringVal(a.atName),
		"fired_at":     cty.StringVal(time.Now().Format(time.RFC3339)),
	}

	value, diags := a.action.Value(evalCtx)
	if diags.HasErrors() {
		a.config.Logger.Error("Error executing action", zap.Error(diags))
		return
	}

	a.config.Logger.Debug("Action executed", zap.String("trigger", a.triggerName), zap.String("at", a.atName), zap.Any("result", value))
}

/// ZapCronLogger

// ZapCronLogger adapts a zap.Logger to implement the cron.Logger interface
type ZapCronLogger struct {
	logger *zap.Logger
}

// NewZapCronLogger creates a new ZapCronLogger that wraps the given zap.Logger
func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

// Info logs informational messages about cron's operation using zap's Debug level
func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	z.logger.Debug(msg, fields...)
}

// Error logs error conditions using zap's Error level
func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	fields = append(fields, zap.Error(err))

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	z.logger.Error(msg, fields...)
}
