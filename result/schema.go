package result

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// schemaVersions maps a result schema version to its embedded definition.
var schemaVersions = map[string]string{
	"bda-custom-output/v1": "schemas/bda-custom-output-v1.json",
}

var (
	compiledMu sync.Mutex
	compiled   = map[string]*jsonschema.Schema{}
)

// SchemaVersions lists the registered result schema versions.
func SchemaVersions() []string {
	versions := make([]string, 0, len(schemaVersions))
	for v := range schemaVersions {
		versions = append(versions, v)
	}
	return versions
}

// loadSchema compiles the schema for version once and caches it.
func loadSchema(version string) (*jsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if schema, ok := compiled[version]; ok {
		return schema, nil
	}
	file, ok := schemaVersions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchemaVersion, version)
	}
	data, err := schemaFiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(file)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled[version] = schema
	return schema, nil
}
