package schema

import (
	"fmt"
	"maps"
	"slices"

	"github.com/acksell/ddbmodel/dynamodb/chunk"
	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/table"
)

// Breakable is an attribute that is chunked before writes.
type Breakable struct {
	Attribute string
	Directive chunk.Directive
}

// KeySchema is everything derived from a model at registration time.
type KeySchema struct {
	Table      table.TableDefinition
	Breakables []Breakable
	// UUIDKey is set when the partition key is generated on create.
	UUIDKey bool
}

func (k KeySchema) PartitionKey() string { return k.Table.KeyDefinitions.PartitionKey.Name }

// SortKey returns the sort key attribute, or "" when the table has none.
func (k KeySchema) SortKey() string { return k.Table.KeyDefinitions.SortKey.Name }

// BuildKeySchema validates m and derives its table definition.
// Properties are visited in name order so the result is deterministic.
func BuildKeySchema(m Model) (KeySchema, error) {
	if m.Name == "" {
		return KeySchema{}, &ConfigError{Reason: "model name is required"}
	}
	ks := KeySchema{Table: table.TableDefinition{Name: m.TableName()}}
	keys := &ks.Table.KeyDefinitions

	names := slices.Sorted(maps.Keys(m.Properties))
	for _, name := range names {
		p := m.Properties[name]
		cfgErr := func(format string, args ...any) error {
			return &ConfigError{Model: m.Name, Property: name, Reason: fmt.Sprintf(format, args...)}
		}
		if err := p.Type.Validate(); err != nil {
			return KeySchema{}, cfgErr("%v", err)
		}
		if p.UUID && name != IDProperty {
			return KeySchema{}, cfgErr("uuid is only allowed on the %q property", IDProperty)
		}
		if p.Chunk != nil {
			if p.Type != String {
				return KeySchema{}, cfgErr("only string properties can be chunked, got %s", p.Type)
			}
			if p.KeyType != KeyNone {
				return KeySchema{}, cfgErr("key properties cannot be chunked")
			}
			if err := p.Chunk.Validate(); err != nil {
				return KeySchema{}, cfgErr("%v", err)
			}
			ks.Breakables = append(ks.Breakables, Breakable{Attribute: name, Directive: *p.Chunk})
		}

		switch p.KeyType {
		case KeyNone:
			continue
		case KeyHash, KeyRange:
		default:
			return KeySchema{}, cfgErr("unknown key type %q", p.KeyType)
		}
		kind, ok := codec.KindOf(p.Type.Zero())
		if !ok {
			return KeySchema{}, cfgErr("type %s cannot be used as a key", p.Type)
		}
		def := table.KeyDef{Name: name, Kind: kind}
		if p.KeyType == KeyHash {
			if keys.PartitionKey.Name != "" {
				return KeySchema{}, cfgErr("second hash key, %q is already the hash key", keys.PartitionKey.Name)
			}
			keys.PartitionKey = def
			ks.UUIDKey = p.UUID
			continue
		}
		if keys.SortKey.Name != "" {
			return KeySchema{}, cfgErr("second range key, %q is already the range key", keys.SortKey.Name)
		}
		keys.SortKey = def
	}
	if keys.PartitionKey.Name == "" {
		return KeySchema{}, &ConfigError{Model: m.Name, Reason: "no hash key property"}
	}
	for _, b := range ks.Breakables {
		for _, name := range names {
			if chunk.IsPart(name, b.Attribute) {
				return KeySchema{}, &ConfigError{Model: m.Name, Property: name,
					Reason: fmt.Sprintf("name collides with the stored parts of chunked property %q", b.Attribute)}
			}
		}
	}
	return ks, nil
}
