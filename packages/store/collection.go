package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/courierhq/courier/packages/collection"
)

// LoadCollection reads a collection document from a YAML file, validates
// it against the document schema, and assigns ids to nodes missing one.
func LoadCollection(path string) (*collection.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collection file: %w", err)
	}
	return ParseCollection(data)
}

// ParseCollection parses and validates a YAML collection document.
func ParseCollection(data []byte) (*collection.Collection, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing collection document: %w", err)
	}

	if err := validateCollectionDocument(doc); err != nil {
		return nil, err
	}

	var col collection.Collection
	if err := yaml.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("decoding collection document: %w", err)
	}
	col.EnsureIDs()
	return &col, nil
}

// validateCollectionDocument checks the decoded document against the
// JSON schema. YAML maps decode to map[string]any under yaml.v3, so the
// document round-trips through JSON cleanly.
func validateCollectionDocument(doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing collection document: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(collectionSchema),
		gojsonschema.NewBytesLoader(docJSON),
	)
	if err != nil {
		return fmt.Errorf("validating collection document: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid collection document:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
