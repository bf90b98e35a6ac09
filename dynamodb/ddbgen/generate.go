package ddbgen

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"os"
	"slices"
	"strings"
	"text/template"
	"unicode"

	"github.com/acksell/ddbmodel/dynamodb/chunk"
	"github.com/acksell/ddbmodel/dynamodb/schema"
)

//go:embed template/models.tmpl
var templates embed.FS

// Config holds configuration for code generation.
type Config struct {
	// Schema is the model YAML file to read.
	Schema string
	// Package is the Go package name for generated code.
	Package string
	// Output is the file path to write generated code to.
	Output string
}

// DefaultConfig returns a Config with defaults from the go:generate environment.
// Package defaults to $GOPACKAGE.
func DefaultConfig() Config {
	return Config{
		Schema:  "models_dynamodb.yaml",
		Package: os.Getenv("GOPACKAGE"),
		Output:  "models_gen.go",
	}
}

// Generate reads cfg.Schema and writes the generated code to cfg.Output.
func Generate(cfg Config) error {
	if cfg.Package == "" {
		return fmt.Errorf("Package is required")
	}
	if cfg.Output == "" {
		return fmt.Errorf("Output is required")
	}
	f, err := os.Open(cfg.Schema)
	if err != nil {
		return err
	}
	defer f.Close()
	models, err := schema.Load(f)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Schema, err)
	}
	if len(models) == 0 {
		return fmt.Errorf("%s declares no models", cfg.Schema)
	}

	code, err := GenerateCode(cfg.Package, models)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output, code, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output, err)
	}
	fmt.Printf("ddb gen: generated %s (%d models)\n", cfg.Output, len(models))
	return nil
}

type modelData struct {
	Name          string
	Type          string
	Plural        string
	Table         string
	TableOverride bool
	Fields        []fieldData
}

type fieldData struct {
	Name     string
	Field    string
	GoType   string
	Tag      string
	Property string
}

// GenerateCode renders the models as formatted Go source.
// Every model is validated the way adapter.Define validates it.
func GenerateCode(packageName string, models []schema.Model) ([]byte, error) {
	data := struct {
		Package   string
		UsesChunk bool
		Models    []modelData
	}{Package: packageName}

	seen := make(map[string]string)
	for _, m := range models {
		ks, err := schema.BuildKeySchema(m)
		if err != nil {
			return nil, err
		}
		md := modelData{
			Name:          m.Name,
			Type:          exportedName(m.Name),
			Table:         m.TableName(),
			TableOverride: m.Table != "",
		}
		md.Plural = plural(md.Type)
		if prev, ok := seen[md.Type]; ok {
			return nil, fmt.Errorf("models %q and %q both generate type %s", prev, m.Name, md.Type)
		}
		seen[md.Type] = m.Name

		names := make([]string, 0, len(m.Properties))
		for name := range m.Properties {
			names = append(names, name)
		}
		// key properties first, then by name
		slices.SortFunc(names, func(a, b string) int {
			if ra, rb := keyRank(ks, a), keyRank(ks, b); ra != rb {
				return ra - rb
			}
			return strings.Compare(a, b)
		})
		fields := make(map[string]string)
		for _, name := range names {
			p := m.Properties[name]
			field := exportedName(name)
			if prev, ok := fields[field]; ok {
				return nil, fmt.Errorf("%s: properties %q and %q both generate field %s", m.Name, prev, name, field)
			}
			fields[field] = name
			tag := name
			if p.UUID {
				tag += ",omitempty"
			}
			if p.Chunk != nil {
				data.UsesChunk = true
			}
			md.Fields = append(md.Fields, fieldData{
				Name:     name,
				Field:    field,
				GoType:   goType(p.Type),
				Tag:      tag,
				Property: propertyLiteral(p),
			})
		}
		data.Models = append(data.Models, md)
	}

	tmpl, err := template.New("models.tmpl").ParseFS(templates, "template/models.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting generated code: %w\n%s", err, buf.String())
	}
	return formatted, nil
}

func keyRank(ks schema.KeySchema, name string) int {
	switch name {
	case ks.PartitionKey():
		return 0
	case ks.SortKey():
		return 1
	}
	return 2
}

func goType(t schema.Type) string {
	switch t {
	case schema.Number:
		return "float64"
	case schema.Binary:
		return "[]byte"
	case schema.Bool:
		return "bool"
	}
	return "string"
}

func propertyLiteral(p schema.Property) string {
	parts := []string{"Type: schema." + typeConst(p.Type)}
	switch p.KeyType {
	case schema.KeyHash:
		parts = append(parts, "KeyType: schema.KeyHash")
	case schema.KeyRange:
		parts = append(parts, "KeyType: schema.KeyRange")
	}
	if p.UUID {
		parts = append(parts, "UUID: true")
	}
	if p.Chunk != nil {
		parts = append(parts, "Chunk: "+directiveLiteral(*p.Chunk))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func typeConst(t schema.Type) string {
	switch t {
	case schema.Number:
		return "Number"
	case schema.Binary:
		return "Binary"
	case schema.Bool:
		return "Bool"
	}
	return "String"
}

func directiveLiteral(d chunk.Directive) string {
	switch {
	case d.Count > 0:
		return fmt.Sprintf("&chunk.Directive{Count: %d}", d.Count)
	case d.Size > 0:
		return fmt.Sprintf("&chunk.Directive{Size: %d}", d.Size)
	}
	return "&chunk.Directive{}"
}

var initialisms = map[string]string{
	"id":   "ID",
	"uuid": "UUID",
	"url":  "URL",
	"uri":  "URI",
	"api":  "API",
	"ttl":  "TTL",
}

// exportedName turns "created_at" or "user-id" into "CreatedAt" and "UserID".
func exportedName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var sb strings.Builder
	for _, w := range words {
		if up, ok := initialisms[strings.ToLower(w)]; ok {
			sb.WriteString(up)
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	out := sb.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "sh"), strings.HasSuffix(s, "ch"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
