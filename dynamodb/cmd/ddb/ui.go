package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acksell/ddbmodel/dynamodb/ddbui"
)

func runUI() error {
	fs := flag.NewFlagSet("ui", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	addr := fs.String("addr", "localhost:8080", "address to listen on")
	fs.Usage = usage(fs, "ui [flags]",
		"ddb ui --db ./data",
		"ddb ui --memory --addr :9000 --schema models_dynamodb.yaml")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	e, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	fmt.Printf("serving %d models on http://%s/api/models (Ctrl+C to stop)\n", len(e.adapter.Models()), *addr)
	return ddbui.NewServer(e.adapter, *addr, e.log).Run(ctx)
}
