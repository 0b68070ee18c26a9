package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject returns a cty object containing all environment
// variables as attributes, suitable for providing to an HCL evaluation
// context.
func GetEnvObject() cty.Value {
	envVars := os.Environ()
	envMap := make(map[string]cty.Value)

	for _, envVar := range envVars {
		parts := strings.SplitN(envVar, "=", 2)
		if len(parts) == 2 {
			envMap[sanitizeEnvVarName(parts[0])] = cty.StringVal(parts[1])
		}
	}

	if len(envMap) == 0 {
		return cty.ObjectVal(map[string]cty.Value{})
	}

	return cty.ObjectVal(envMap)
}

// sanitizeEnvVarName converts environment variable names to valid HCL
// attribute names: letters, digits, underscores, and hyphens, starting
// with a letter or underscore.
func sanitizeEnvVarName(name string) string {
	if name == "" {
		return "_"
	}

	var result strings.Builder

	firstChar := rune(name[0])
	if isValidFirstChar(firstChar) {
		result.WriteRune(firstChar)
	} else {
		result.WriteRune('_')
	}

	for _, char := range name[1:] {
		if isValidChar(char) {
			result.WriteRune(char)
		} else {
			result.WriteRune('_')
		}
	}

	return result.String()
}

func isValidFirstChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isValidChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}
