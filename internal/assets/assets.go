// Package assets provides access to the embedded function sources and SQL fragments.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

// functionFiles embeds the sources of the serverless function catalog.
//
//go:embed functions/*.js
var functionFiles embed.FS

// sqlFiles embeds the shared SQL fragments and the per-service deploy scripts.
//
//go:embed sql
var sqlFiles embed.FS

// Functions returns the function sources rooted at the functions directory,
// so catalog paths read like "find.js".
func Functions() fs.FS {
	sub, err := fs.Sub(functionFiles, "functions")
	if err != nil {
		panic(fmt.Sprintf("embedded functions directory missing: %v", err))
	}
	return sub
}

// FunctionSource returns the source of one catalog function.
func FunctionSource(name string) (string, error) {
	data, err := functionFiles.ReadFile(path.Join("functions", name))
	if err != nil {
		return "", fmt.Errorf("function source %s: %w", name, err)
	}
	return string(data), nil
}

// SQL returns an embedded SQL fragment, e.g. "send-telegram-message.sql"
// or "nyse-nsdq-halts/deploy.sql".
func SQL(name string) (string, error) {
	data, err := sqlFiles.ReadFile(path.Join("sql", name))
	if err != nil {
		return "", fmt.Errorf("sql fragment %s: %w", name, err)
	}
	return string(data), nil
}
