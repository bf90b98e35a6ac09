package schema

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/chunk"
	"gopkg.in/yaml.v3"
)

// File is the YAML model file layout.
//
//	models:
//	  - name: User
//	    properties:
//	      realm: {type: string, keyType: hash}
//	      id:    {type: string, keyType: sort, uuid: true}
//	      essay: {type: string, breaker: 3}
//	      tasks: {type: string, sharding: true, splitter: 10kb}
type File struct {
	Models []ModelYAML `yaml:"models"`
}

type ModelYAML struct {
	Name       string                  `yaml:"name"`
	Table      string                  `yaml:"table,omitempty"`
	Properties map[string]PropertyYAML `yaml:"properties"`
}

type PropertyYAML struct {
	Type    string `yaml:"type"`
	KeyType string `yaml:"keyType,omitempty"`
	UUID    bool   `yaml:"uuid,omitempty"`
	// Breaker is a fixed piece count, or "auto" / -1 for automatic sizing.
	Breaker string `yaml:"breaker,omitempty"`
	// Sharding with an optional Splitter size ("10kb") chunks by byte size.
	Sharding bool   `yaml:"sharding,omitempty"`
	Splitter string `yaml:"splitter,omitempty"`
}

// Load reads a YAML model file.
func Load(r io.Reader) ([]Model, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode model file: %w", err)
	}
	models := make([]Model, 0, len(f.Models))
	for _, my := range f.Models {
		m, err := my.Model()
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func (my ModelYAML) Model() (Model, error) {
	m := Model{Name: my.Name, Table: my.Table, Properties: make(map[string]Property, len(my.Properties))}
	for name, py := range my.Properties {
		p, err := py.Property()
		if err != nil {
			return Model{}, &ConfigError{Model: my.Name, Property: name, Reason: err.Error()}
		}
		m.Properties[name] = p
	}
	return m, nil
}

func (py PropertyYAML) Property() (Property, error) {
	kt, err := ParseKeyType(strings.ToLower(py.KeyType))
	if err != nil {
		return Property{}, err
	}
	p := Property{Type: Type(strings.ToLower(py.Type)), KeyType: kt, UUID: py.UUID}
	if p.Type == "" {
		p.Type = String
	}
	if py.Breaker != "" && py.Sharding {
		return Property{}, fmt.Errorf("breaker and sharding are mutually exclusive")
	}
	switch {
	case py.Breaker != "":
		d, err := parseBreaker(py.Breaker)
		if err != nil {
			return Property{}, err
		}
		p.Chunk = &d
	case py.Sharding:
		d := chunk.Auto()
		if py.Splitter != "" {
			size, err := chunk.ParseSize(py.Splitter)
			if err != nil {
				return Property{}, err
			}
			d.Size = size
		}
		p.Chunk = &d
	case py.Splitter != "":
		return Property{}, fmt.Errorf("splitter requires sharding: true")
	}
	return p, nil
}

func parseBreaker(s string) (chunk.Directive, error) {
	if s == "auto" || s == "-1" {
		return chunk.Auto(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return chunk.Directive{}, fmt.Errorf("breaker must be a positive count or auto, got %q", s)
	}
	return chunk.Directive{Count: n}, nil
}
