package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type declarationsFile struct {
	Entities []Declaration `yaml:"entities"`
}

// LoadDeclarations reads entity declarations from a YAML file and builds a Registry from them.
func LoadDeclarations(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations file %s: %w", path, err)
	}

	return ParseDeclarations(data)
}

func ParseDeclarations(data []byte) (*Registry, error) {
	var file declarationsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, configErrorf("failed to parse declarations: %s", err)
	}

	return New(file.Entities...)
}
