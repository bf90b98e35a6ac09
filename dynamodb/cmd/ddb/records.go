package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/config"
	"github.com/acksell/ddbmodel/dynamodb/filter"
	"github.com/aws/aws-sdk-go-v2/aws"
)

func runTables() error {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	fs.Usage = usage(fs, "tables [flags]", "ddb tables --schema models_dynamodb.yaml")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	for _, name := range e.adapter.Models() {
		ks, err := e.adapter.KeySchema(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s table=%s hash=%s", name, ks.Table.Name, ks.PartitionKey())
		if ks.SortKey() != "" {
			fmt.Printf(" range=%s", ks.SortKey())
		}
		fmt.Println()
	}
	return nil
}

func runPut() error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	fs.Usage = usage(fs, "put [flags] <model> <json>",
		`ddb put --memory User '{"realm":"users","id":"1","name":"John Doe"}'`)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("expected <model> <json>")
	}
	rec, err := decodeJSON(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	stored, err := e.adapter.Create(ctx, fs.Arg(0), rec)
	if err != nil {
		return err
	}
	return printJSON(stored, true)
}

func runGet() error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	fs.Usage = usage(fs, "get [flags] <model> <hash> [range]", "ddb get --db ./data User users 1")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return fmt.Errorf("expected <model> <hash> [range]")
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	key, err := e.adapter.ParseKey(fs.Arg(0), fs.Arg(1), fs.Args()[2:]...)
	if err != nil {
		return err
	}
	rec, err := e.adapter.Find(ctx, fs.Arg(0), key)
	if err != nil {
		return err
	}
	return printJSON(rec, true)
}

func runAll() error {
	fs := flag.NewFlagSet("all", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	where := fs.String("where", "", "JSON where clause")
	order := fs.String("order", "", `order such as "age DESC, name"`)
	limit := fs.Int("limit", 0, "maximum records to print")
	skip := fs.Int("skip", 0, "records to skip")
	fs.Usage = usage(fs, "all [flags] <model>",
		`ddb all --db ./data --where '{"realm":"users"}' --order "age DESC" --limit 10 User`)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected <model>")
	}
	q := &filter.Query{Order: *order, Limit: *limit, Skip: *skip}
	if *where != "" {
		w, err := decodeJSON(*where)
		if err != nil {
			return fmt.Errorf("where: %w", err)
		}
		q.Where = w
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	recs, err := e.adapter.All(ctx, fs.Arg(0), q)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := printJSON(rec, false); err != nil {
			return err
		}
	}
	return nil
}

func runCount() error {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	where := fs.String("where", "", "JSON where clause")
	fs.Usage = usage(fs, "count [flags] <model>", `ddb count --db ./data --where '{"realm":"users"}' User`)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected <model>")
	}
	w, err := optionalJSON(*where)
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	n, err := e.adapter.Count(ctx, fs.Arg(0), w)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func runRm() error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	where := fs.String("where", "", `JSON where clause; deletes every match ("{}" deletes all)`)
	fs.Usage = usage(fs, "rm [flags] <model> [<hash> [range]]",
		"ddb rm --db ./data User users 1",
		`ddb rm --db ./data --where '{"realm":"users"}' User`)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	bulk := *where != ""
	if fs.NArg() < 1 || (bulk && fs.NArg() != 1) || (!bulk && (fs.NArg() < 2 || fs.NArg() > 3)) {
		fs.Usage()
		return fmt.Errorf("expected <model> <hash> [range], or <model> with --where")
	}

	ctx := context.Background()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	if bulk {
		w, err := decodeJSON(*where)
		if err != nil {
			return fmt.Errorf("where: %w", err)
		}
		n, err := e.adapter.DestroyAll(ctx, fs.Arg(0), w)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d records\n", n)
		return nil
	}
	key, err := e.adapter.ParseKey(fs.Arg(0), fs.Arg(1), fs.Args()[2:]...)
	if err != nil {
		return err
	}
	old, err := e.adapter.Destroy(ctx, fs.Arg(0), key)
	if err != nil {
		return err
	}
	return printJSON(old, true)
}

func runWhoami() error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	path := fs.String("config", "", "settings file (default: ddb.yaml searched upward)")
	fs.Usage = usage(fs, "whoami [flags]")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	s, err := config.Load(*path)
	if err != nil {
		return err
	}
	out, err := config.CallerIdentity(context.Background(), s)
	if err != nil {
		return err
	}
	fmt.Printf("account: %s\narn:     %s\nuser:    %s\n",
		aws.ToString(out.Account), aws.ToString(out.Arn), aws.ToString(out.UserId))
	return nil
}

func decodeJSON(s string) (codec.Record, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var rec codec.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func optionalJSON(s string) (codec.Record, error) {
	if s == "" {
		return nil, nil
	}
	return decodeJSON(s)
}

func printJSON(v any, indent bool) error {
	enc := json.NewEncoder(os.Stdout)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
