// Package schema describes models and derives their DynamoDB key schema.
//
// A Model is a named set of properties. Exactly one property is the hash
// (partition) key and at most one is the range (sort) key. String properties
// may carry a chunk directive, which marks them breakable.
package schema

import (
	"fmt"

	"github.com/acksell/ddbmodel/dynamodb/chunk"
)

// IDProperty is the only property name allowed to carry uuid: true.
const IDProperty = "id"

type Type string

const (
	String Type = "string"
	Number Type = "number"
	Binary Type = "binary"
	Bool   Type = "bool"
)

// Zero returns a representative value of the type.
func (t Type) Zero() any {
	switch t {
	case String:
		return ""
	case Number:
		return float64(0)
	case Binary:
		return []byte{}
	case Bool:
		return false
	}
	return nil
}

func (t Type) Validate() error {
	switch t {
	case String, Number, Binary, Bool:
		return nil
	}
	return fmt.Errorf("unknown type %q", t)
}

type KeyType string

const (
	KeyNone  KeyType = ""
	KeyHash  KeyType = "hash"
	KeyRange KeyType = "range"
)

// ParseKeyType accepts "hash", "range" and "sort", which is an alias for range.
func ParseKeyType(s string) (KeyType, error) {
	switch s {
	case "", "none":
		return KeyNone, nil
	case "hash", "partition":
		return KeyHash, nil
	case "range", "sort":
		return KeyRange, nil
	}
	return KeyNone, fmt.Errorf("unknown key type %q", s)
}

type Property struct {
	Type    Type
	KeyType KeyType
	// UUID fills the property with a random UUID on create when absent.
	UUID bool
	// Chunk marks the property breakable. nil means the value is stored whole.
	Chunk *chunk.Directive
}

type Model struct {
	Name string
	// Table overrides the table name, which defaults to Name.
	Table      string
	Properties map[string]Property
}

func (m Model) TableName() string {
	if m.Table != "" {
		return m.Table
	}
	return m.Name
}

// ConfigError is returned for invalid model definitions.
type ConfigError struct {
	Model    string
	Property string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("model %q: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("model %q property %q: %s", e.Model, e.Property, e.Reason)
}
