package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	graphlake "github.com/graphlake/graphlake-go"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() string {
	return `usage: graphlake <command> [flags]

commands:
  create       create a graph and wait for it
  upload       stage a file into a staging table
  tables       list staging tables
  ingest       ingest uploaded staging data into the graph
  materialize  reconcile staging tables into the graph
  status       show materialization staleness
  query        run a Cypher query
  serve-mcp    expose the SDK as MCP tools over HTTP
  version      print version and exit
`
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage())
		return nil
	}
	command, rest := args[0], args[1:]
	if command == "version" {
		fmt.Println(version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	switch command {
	case "create":
		return runCreate(ctx, client, rest)
	case "upload":
		return runUpload(ctx, client, rest)
	case "tables":
		return runTables(ctx, client, rest)
	case "ingest":
		return runIngest(ctx, client, rest)
	case "materialize":
		return runMaterialize(ctx, client, rest)
	case "status":
		return runStatus(ctx, client, rest)
	case "query":
		return runQuery(ctx, client, rest)
	case "serve-mcp":
		return runServeMCP(ctx, client, rest)
	default:
		fmt.Print(usage())
		return fmt.Errorf("unknown command %q", command)
	}
}

// newClient builds a client from graphlake.yml and the environment.
func newClient() (*graphlake.Client, error) {
	cfg, err := graphlake.LoadConfig(".")
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("no base URL configured; set GRAPHLAKE_URL or baseUrl in graphlake.yml")
	}
	return graphlake.New(*cfg)
}

// newFlagSet creates a flag set that prints its own errors.
func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("graphlake "+name, flag.ContinueOnError)
}
