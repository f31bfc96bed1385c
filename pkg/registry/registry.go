// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas.json
var defaultRegistry []byte

var ErrSchemaNotFound = errors.New("schema not found")

// ValidationError carries every schema violation of one document.
type ValidationError struct {
	SchemaID string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.SchemaID, strings.Join(e.Problems, "; "))
}

func LoadRegistry(path string) (*SchemaRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() *SchemaRegistry {
	reg, err := Parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded schema registry: %v", err))
	}
	return reg
}

func Parse(data []byte) (*SchemaRegistry, error) {
	var reg SchemaRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &reg, nil
}

func (r *SchemaRegistry) Find(id string) (*SchemaDefinition, error) {
	for i := range r.Schemas {
		if r.Schemas[i].ID == id {
			return &r.Schemas[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrSchemaNotFound)
}

// ForCollection returns the top-level schema stored in collection.
func (r *SchemaRegistry) ForCollection(collection string) (*SchemaDefinition, error) {
	for i := range r.Schemas {
		if r.Schemas[i].Collection == collection && !r.Schemas[i].Embedded {
			return &r.Schemas[i], nil
		}
	}
	return nil, fmt.Errorf("collection %s: %w", collection, ErrSchemaNotFound)
}

// Validate checks data against the schema with id. data may be a map or any
// value that marshals to a JSON object.
func (r *SchemaRegistry) Validate(id string, data interface{}) error {
	def, err := r.Find(id)
	if err != nil {
		return err
	}
	if len(def.Schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(def.Schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("validate %s: %w", id, err)
	}
	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			problems[i] = desc.String()
		}
		return &ValidationError{SchemaID: id, Problems: problems}
	}
	return nil
}
