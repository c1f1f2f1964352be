package flow

import (
	"fmt"
	"os"

	"github.com/aretw0/golem/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a document whose top level maps flow names to flow bodies.
// Flow order follows the document.
//
//	default:
//	  intent: [greeting]
//	  states:
//	    root:
//	      action: greet
func ParseYAML(data []byte) ([]Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &domain.ConfigurationError{Reason: "flow document must be a mapping of flow names"}
	}

	defs := make([]Definition, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var body map[string]any
		if err := root.Content[i+1].Decode(&body); err != nil {
			return nil, &domain.ConfigurationError{Flow: name, Reason: err.Error()}
		}
		def, err := DecodeDefinition(name, body)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFiles reads and concatenates the definitions of several YAML files.
func LoadFiles(paths ...string) ([]Definition, error) {
	var defs []Definition
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open definition %s: %w", path, err)
		}
		more, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defs = append(defs, more...)
	}
	return defs, nil
}
