// ddb is a command line client for models stored through the adapter.
//
// # Installation
//
//	go install github.com/acksell/ddbmodel/dynamodb/cmd/ddb@latest
//
// # Commands
//
//	ddb tables   Create the tables of every declared model
//	ddb put      Create a record from JSON
//	ddb get      Print the record under a key
//	ddb all      Print records matching a where clause
//	ddb count    Count records matching a where clause
//	ddb rm       Delete one record, or every match with --where
//	ddb gen      Generate Go types from the model declarations
//	ddb ui       Serve the models over a JSON API
//	ddb whoami   Show the identity behind the configured credentials
//
// Models are read from --schema, or from every models_dynamodb.yaml found
// in the repository. Storage is the DynamoDB endpoint from ddb.yaml and
// DDB_* variables unless --memory or --db selects a local store:
//
//	ddb tables --db ./data
//	ddb put --db ./data User '{"realm":"users","id":"1","name":"John Doe","age":20}'
//	ddb get --db ./data User users 1
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	// Remove the subcommand from args so flag parsing works
	os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

	var err error
	switch cmd {
	case "tables", "define":
		err = runTables()
	case "put", "create":
		err = runPut()
	case "get", "find":
		err = runGet()
	case "all", "ls":
		err = runAll()
	case "count":
		err = runCount()
	case "rm", "destroy":
		err = runRm()
	case "gen", "generate":
		err = runGen()
	case "ui", "serve":
		err = runUI()
	case "whoami":
		err = runWhoami()
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("ddb version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "ddb: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ddb %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ddb - DynamoDB model tools

Usage:
  ddb <command> [flags] [args]

Commands:
  tables                       Create missing tables for all models
  put    <model> <json>        Create a record
  get    <model> <hash> [range] Print a record
  all    <model>               Print records (--where, --order, --limit, --skip)
  count  <model>               Count records (--where)
  rm     <model> <hash> [range] Delete a record, or all matches with --where
  gen                          Generate Go types from the model declarations
  ui                           Serve the models over a JSON API (--addr)
  whoami                       Show the caller identity of the credentials

Storage flags (all record commands):
  --config ddb.yaml   settings file (default: searched upward)
  --schema file.yaml  model declarations (default: discovered)
  --memory            use an in-memory local store
  --db ./data         use a local store persisted in a directory

Examples:
  ddb tables --db ./data
  ddb put --db ./data User '{"realm":"users","id":"1","age":20}'
  ddb all --db ./data --where '{"realm":"users","age":{"gt":18}}' --order "age DESC" User

Configuration (optional):
  Create ddb.yaml for connection defaults:

    host: localhost
    port: 8000
    region: ap-southeast-1
    readCapacity: 5
    writeCapacity: 10

Run 'ddb <command> --help' for more information on a command.`)
}
