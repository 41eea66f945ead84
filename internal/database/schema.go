package database

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.sql
var schemaFiles embed.FS

// schemaNames maps database names to their schema files
var schemaNames = map[string]string{
	"ledger": "schemas/ledger_schema.sql",
}

// schemaFor returns the schema SQL for the named database, or "" when none is registered.
func schemaFor(name string) (string, error) {
	file, ok := schemaNames[name]
	if !ok {
		return "", nil
	}

	content, err := schemaFiles.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", file, err)
	}

	return string(content), nil
}
