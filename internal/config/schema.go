package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed config.schema.json
var configSchema []byte

// validateSchema checks raw config JSON against the embedded schema.
func validateSchema(data []byte) error {
	schema := gojsonschema.NewBytesLoader(configSchema)
	document := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("schema validation failed to run: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("invalid configuration:")
	for _, desc := range result.Errors() {
		sb.WriteString(fmt.Sprintf("\n  %s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%s", sb.String())
}
