// Package configfile reads and rewrites the connectors configuration
// document. The document is owned by the surrounding tool; this package
// only touches connectors[].transport.env, validates the schema before
// persisting, and replaces the file atomically (temp file, fsync, rename).
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	cverrors "github.com/plexhub/convault/internal/errors"
)

// Document is the connectors configuration.
type Document struct {
	Connectors []Connector `json:"connectors"`
}

// Connector is one configured connector.
type Connector struct {
	ID        string     `json:"id"`
	Transport *Transport `json:"transport,omitempty"`
}

// Transport describes how a connector is launched, including the
// environment map the vault rewrites.
type Transport struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Connector returns the connector with the given id, or nil.
func (d *Document) Connector(id string) *Connector {
	for i := range d.Connectors {
		if d.Connectors[i].ID == id {
			return &d.Connectors[i]
		}
	}
	return nil
}

// EnsureEnv guarantees the connector has a transport with a non-nil env
// map and returns it.
func (c *Connector) EnsureEnv() map[string]string {
	if c.Transport == nil {
		c.Transport = &Transport{}
	}
	if c.Transport.Env == nil {
		c.Transport.Env = make(map[string]string)
	}
	return c.Transport.Env
}

const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["connectors"],
	"properties": {
		"connectors": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"transport": {
						"type": "object",
						"properties": {
							"type": {"type": "string"},
							"command": {"type": "string"},
							"args": {"type": "array", "items": {"type": "string"}},
							"env": {
								"type": "object",
								"additionalProperties": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

func validate(data []byte, path string) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return cverrors.ConfigError{
			Path:    path,
			Message: fmt.Sprintf("cannot validate: %v", err),
		}
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return cverrors.ConfigError{
			Path:       path,
			Message:    first.String(),
			Suggestion: "Fix the connectors configuration and retry",
		}
	}
	return nil
}

// Load reads and validates the document at path. A missing file yields an
// empty document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{Connectors: []Connector{}}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := validate(data, path); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cverrors.ConfigError{
			Path:    path,
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}
	}
	return &doc, nil
}

// Save validates doc and atomically replaces the file at path: the new
// content is written to a temp file in the same directory, fsync'd, then
// renamed over the destination. A crash at any point leaves either the old
// or the new document, never a torn mix.
func Save(path string, doc *Document) error {
	if doc.Connectors == nil {
		doc.Connectors = []Connector{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	if err := validate(data, path); err != nil {
		return err
	}

	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
