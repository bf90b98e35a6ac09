package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/acksell/ddbmodel/dynamodb/ddbgen"
)

func runGen() error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	defaults := ddbgen.DefaultConfig()

	var (
		schemaPath = fs.String("schema", defaults.Schema, "model declarations to generate from")
		pkg        = fs.String("package", defaults.Package, "package name of the generated file (default $GOPACKAGE)")
		output     = fs.String("output", defaults.Output, "output file path for generated Go code")
	)

	fs.Usage = func() {
		fmt.Println(`ddb gen - Generate Go types from model declarations

Usage:
  ddb gen [flags]

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  ddb gen --package models                  # models_dynamodb.yaml -> models_gen.go
  ddb gen --schema ./users.yaml --output users_gen.go

Typical usage with go:generate:
  //go:generate ddb gen

For every model the generated file holds:
  - a struct with dynamodbav tags
  - <Type>Model, the schema.Model to pass to adapter.Define
  - <Types>(a), the typed adapter handle`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	return ddbgen.Generate(ddbgen.Config{
		Schema:  *schemaPath,
		Package: *pkg,
		Output:  *output,
	})
}
