// Package mcptools exposes GraphLake SDK operations as Model Context
// Protocol tools, so agent runtimes can create graphs, stage data, ingest,
// materialize, and query without bespoke HTTP glue.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the GraphLake tools registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "graphlake",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_graph",
		Description: "Create a new graph and wait for it to become available. Returns the graph id.",
	}, svc.CreateGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_file",
		Description: "Stage a local file into a graph's staging table: request an upload target, transfer the bytes, and confirm completion so the file becomes eligible for ingestion.",
	}, svc.UploadFile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tables",
		Description: "List the graph's staging tables with file counts, row counts, and sizes.",
	}, svc.ListTables)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_tables",
		Description: "Ingest every staging table with uploaded files into the graph. Tables without uploaded files are skipped. Returns per-table outcomes.",
	}, svc.IngestTables)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "materialize_graph",
		Description: "Reconcile the staging tables into the queryable graph, clearing the staleness flag.",
	}, svc.MaterializeGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "materialization_status",
		Description: "Report whether the graph is stale relative to its staging tables and when it was last materialized.",
	}, svc.MaterializationStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_query",
		Description: "Execute a Cypher query against the graph and return row maps.",
	}, svc.RunQuery)

	return server
}

// Run starts an HTTP server exposing the GraphLake MCP tools at addr.
func Run(ctx context.Context, svc *Service, addr string) error {
	server := NewServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when the context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
