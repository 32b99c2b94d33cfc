package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	graphlake "github.com/graphlake/graphlake-go"
	"github.com/graphlake/graphlake-go/mcptools"
)

func printProgress(msg string) {
	fmt.Printf("   %s\n", msg)
}

func runCreate(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("create")
	name := fs.String("name", "", "graph name (required)")
	description := fs.String("description", "", "graph description")
	timeout := fs.Duration("timeout", 60*time.Second, "how long to wait for asynchronous creation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("create: -name is required")
	}

	graphID, err := client.Graphs.CreateGraphAndWait(ctx, graphlake.GraphMetadata{
		Name:        *name,
		Description: *description,
	}, nil, graphlake.CreateGraphOptions{
		Timeout:    *timeout,
		OnProgress: printProgress,
	})
	if err != nil {
		return err
	}
	fmt.Println(graphID)
	return nil
}

func runUpload(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("upload")
	graphID := fs.String("graph", "", "graph id (required)")
	table := fs.String("table", "", "staging table name (required)")
	file := fs.String("file", "", "path of the file to stage (required)")
	rows := fs.Int64("rows", 0, "row count to report at confirmation, when known")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" || *table == "" || *file == "" {
		return fmt.Errorf("upload: -graph, -table, and -file are required")
	}

	result := client.Tables.UploadFile(ctx, *graphID, *table, *file, graphlake.UploadOptions{
		RowCount:   *rows,
		OnProgress: printProgress,
	})
	if !result.Success {
		return fmt.Errorf("upload failed: %s", result.Error)
	}
	fmt.Printf("uploaded %s (%d bytes) as file %s\n", *file, result.SizeBytes, result.FileID)
	return nil
}

func runTables(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("tables")
	graphID := fs.String("graph", "", "graph id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" {
		return fmt.Errorf("tables: -graph is required")
	}

	tables, err := client.Tables.ListStagingTables(ctx, *graphID)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Println("no staging tables")
		return nil
	}
	fmt.Printf("%-24s %-13s %6s %9s %12s %14s\n", "TABLE", "KIND", "FILES", "UPLOADED", "ROWS", "BYTES")
	for _, t := range tables {
		fmt.Printf("%-24s %-13s %6d %9d %12d %14d\n",
			t.Name, t.Kind, t.FileCount, t.UploadedFileCount, t.RowCount, t.TotalSizeBytes)
	}
	return nil
}

func runIngest(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("ingest")
	graphID := fs.String("graph", "", "graph id (required)")
	ignoreErrors := fs.Bool("ignore-errors", true, "continue past per-table failures")
	rebuild := fs.Bool("rebuild", false, "regenerate the graph from the staging source of truth")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" {
		return fmt.Errorf("ingest: -graph is required")
	}

	run, err := client.Tables.IngestAllTables(ctx, *graphID, graphlake.IngestOptions{
		IgnoreErrors: *ignoreErrors,
		Rebuild:      *rebuild,
		OnProgress:   printProgress,
	})
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d rows across %d tables (%d failed, %d skipped) in %s\n",
		run.TotalRows, len(run.SuccessfulTables), len(run.FailedTables), len(run.SkippedTables), run.Elapsed)
	if !run.Success {
		return fmt.Errorf("ingestion failed for: %v", run.FailedTables)
	}
	return nil
}

func runMaterialize(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("materialize")
	graphID := fs.String("graph", "", "graph id (required)")
	rebuild := fs.Bool("rebuild", false, "full rebuild instead of delta")
	force := fs.Bool("force", false, "materialize even when the graph is fresh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" {
		return fmt.Errorf("materialize: -graph is required")
	}

	result := client.Materialization.Materialize(ctx, *graphID, graphlake.MaterializeOptions{
		Rebuild:    *rebuild,
		Force:      *force,
		OnProgress: printProgress,
	})
	if !result.Success {
		return fmt.Errorf("materialization failed: %s", result.Error)
	}
	fmt.Printf("%s: %d tables, %d rows in %s\n",
		result.Status, len(result.TablesMaterialized), result.TotalRows, result.ExecutionTime)
	return nil
}

func runStatus(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("status")
	graphID := fs.String("graph", "", "graph id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" {
		return fmt.Errorf("status: -graph is required")
	}

	status := client.Materialization.Status(ctx, *graphID)
	if status == nil {
		fmt.Println("materialization status unavailable")
		return nil
	}
	if status.IsStale {
		fmt.Printf("stale: %s\n", status.StaleReason)
	} else {
		fmt.Println("fresh")
	}
	if status.LastMaterializedAt != "" {
		fmt.Printf("last materialized: %s\n", status.LastMaterializedAt)
	}
	if status.Message != "" {
		fmt.Println(status.Message)
	}
	return nil
}

func runQuery(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("query")
	graphID := fs.String("graph", "", "graph id (required)")
	cypher := fs.String("q", "", "Cypher query (required)")
	params := fs.String("params", "", "query parameters as a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *graphID == "" || *cypher == "" {
		return fmt.Errorf("query: -graph and -q are required")
	}

	var parameters map[string]any
	if *params != "" {
		if err := json.Unmarshal([]byte(*params), &parameters); err != nil {
			return fmt.Errorf("query: parse -params: %w", err)
		}
	}

	result, err := client.Query.Query(ctx, *graphID, *cypher, parameters)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result.Rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Printf("%d rows in %s\n", result.RowCount, result.ExecutionTime)
	return nil
}

func runServeMCP(ctx context.Context, client *graphlake.Client, args []string) error {
	fs := newFlagSet("serve-mcp")
	addr := fs.String("addr", "127.0.0.1:8402", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Printf("serving GraphLake MCP tools on %s\n", *addr)
	return mcptools.Run(ctx, mcptools.NewService(client), *addr)
}
