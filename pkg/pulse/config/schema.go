package config

import (
	"github.com/hashicorp/hcl/v2"
)

var blockSchema = []hcl.BlockHeaderSchema{
	{
		Type:       "const",
		LabelNames: []string{},
	},
	{
		Type:       "endpoint",
		LabelNames: []string{"name"},
	},
	{
		Type:       "function",
		LabelNames: []string{"name"},
	},
	{
		Type:       "subscription",
		LabelNames: []string{"name"},
	},
	{
		Type:       "trigger",
		LabelNames: []string{"name"},
	},
}

var configSchema = &hcl.BodySchema{
	Blocks: blockSchema,
}
