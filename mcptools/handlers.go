package mcptools

import (
	"context"
	"fmt"
	"time"

	graphlake "github.com/graphlake/graphlake-go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service holds the SDK client used by the MCP tool handlers.
type Service struct {
	client *graphlake.Client
}

// NewService creates a Service over the given client.
func NewService(client *graphlake.Client) *Service {
	return &Service{client: client}
}

// --- create_graph ---

type CreateGraphInput struct {
	Name           string   `json:"name" jsonschema:"name of the graph to create"`
	Description    string   `json:"description,omitempty" jsonschema:"optional description"`
	Tags           []string `json:"tags,omitempty" jsonschema:"optional tags"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty" jsonschema:"how long to wait for asynchronous creation, default 60"`
}

type CreateGraphOutput struct {
	GraphID string `json:"graphId"`
}

func (s *Service) CreateGraph(ctx context.Context, _ *mcp.CallToolRequest, input CreateGraphInput) (*mcp.CallToolResult, CreateGraphOutput, error) {
	if input.Name == "" {
		return nil, CreateGraphOutput{}, fmt.Errorf("name is required")
	}
	opts := graphlake.CreateGraphOptions{}
	if input.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	graphID, err := s.client.Graphs.CreateGraphAndWait(ctx, graphlake.GraphMetadata{
		Name:        input.Name,
		Description: input.Description,
		Tags:        input.Tags,
	}, nil, opts)
	if err != nil {
		return nil, CreateGraphOutput{}, err
	}
	return nil, CreateGraphOutput{GraphID: graphID}, nil
}

// --- upload_file ---

type UploadFileInput struct {
	GraphID   string `json:"graphId" jsonschema:"graph identifier"`
	TableName string `json:"tableName" jsonschema:"staging table to upload into"`
	Path      string `json:"path" jsonschema:"local path of the file to stage"`
	RowCount  int64  `json:"rowCount,omitempty" jsonschema:"row count to report at confirmation, when known"`
}

type UploadFileOutput struct {
	Success      bool   `json:"success"`
	FileID       string `json:"fileId,omitempty"`
	TableCreated bool   `json:"tableCreated,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (s *Service) UploadFile(ctx context.Context, _ *mcp.CallToolRequest, input UploadFileInput) (*mcp.CallToolResult, UploadFileOutput, error) {
	if input.GraphID == "" || input.TableName == "" || input.Path == "" {
		return nil, UploadFileOutput{}, fmt.Errorf("graphId, tableName, and path are required")
	}
	result := s.client.Tables.UploadFile(ctx, input.GraphID, input.TableName, input.Path, graphlake.UploadOptions{
		RowCount: input.RowCount,
	})
	return nil, UploadFileOutput{
		Success:      result.Success,
		FileID:       result.FileID,
		TableCreated: result.TableCreated,
		SizeBytes:    result.SizeBytes,
		Error:        result.Error,
	}, nil
}

// --- list_tables ---

type ListTablesInput struct {
	GraphID string `json:"graphId" jsonschema:"graph identifier"`
}

type TableSummary struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	FileCount         int    `json:"fileCount"`
	UploadedFileCount int    `json:"uploadedFileCount"`
	RowCount          int64  `json:"rowCount"`
	TotalSizeBytes    int64  `json:"totalSizeBytes"`
}

type ListTablesOutput struct {
	Tables []TableSummary `json:"tables"`
}

func (s *Service) ListTables(ctx context.Context, _ *mcp.CallToolRequest, input ListTablesInput) (*mcp.CallToolResult, ListTablesOutput, error) {
	if input.GraphID == "" {
		return nil, ListTablesOutput{}, fmt.Errorf("graphId is required")
	}
	tables, err := s.client.Tables.ListStagingTables(ctx, input.GraphID)
	if err != nil {
		return nil, ListTablesOutput{}, err
	}
	out := ListTablesOutput{Tables: make([]TableSummary, 0, len(tables))}
	for _, t := range tables {
		out.Tables = append(out.Tables, TableSummary{
			Name:              t.Name,
			Kind:              string(t.Kind),
			FileCount:         t.FileCount,
			UploadedFileCount: t.UploadedFileCount,
			RowCount:          t.RowCount,
			TotalSizeBytes:    t.TotalSizeBytes,
		})
	}
	return nil, out, nil
}

// --- ingest_tables ---

type IngestTablesInput struct {
	GraphID      string `json:"graphId" jsonschema:"graph identifier"`
	IgnoreErrors bool   `json:"ignoreErrors,omitempty" jsonschema:"continue past per-table failures"`
	Rebuild      bool   `json:"rebuild,omitempty" jsonschema:"regenerate the graph from the staging source of truth"`
}

type TableOutcome struct {
	TableName    string `json:"tableName"`
	Status       string `json:"status"`
	RowsIngested int64  `json:"rowsIngested,omitempty"`
	Error        string `json:"error,omitempty"`
}

type IngestTablesOutput struct {
	Success          bool           `json:"success"`
	Tables           []TableOutcome `json:"tables"`
	SuccessfulTables []string       `json:"successfulTables,omitempty"`
	FailedTables     []string       `json:"failedTables,omitempty"`
	SkippedTables    []string       `json:"skippedTables,omitempty"`
	TotalRows        int64          `json:"totalRows"`
}

func (s *Service) IngestTables(ctx context.Context, _ *mcp.CallToolRequest, input IngestTablesInput) (*mcp.CallToolResult, IngestTablesOutput, error) {
	if input.GraphID == "" {
		return nil, IngestTablesOutput{}, fmt.Errorf("graphId is required")
	}
	run, err := s.client.Tables.IngestAllTables(ctx, input.GraphID, graphlake.IngestOptions{
		IgnoreErrors: input.IgnoreErrors,
		Rebuild:      input.Rebuild,
	})
	if err != nil {
		return nil, IngestTablesOutput{}, err
	}
	out := IngestTablesOutput{
		Success:          run.Success,
		SuccessfulTables: run.SuccessfulTables,
		FailedTables:     run.FailedTables,
		SkippedTables:    run.SkippedTables,
		TotalRows:        run.TotalRows,
	}
	for _, t := range run.Tables {
		out.Tables = append(out.Tables, TableOutcome{
			TableName:    t.TableName,
			Status:       string(t.Status),
			RowsIngested: t.RowsIngested,
			Error:        t.Error,
		})
	}
	return nil, out, nil
}

// --- materialize_graph ---

type MaterializeInput struct {
	GraphID string `json:"graphId" jsonschema:"graph identifier"`
	Rebuild bool   `json:"rebuild,omitempty" jsonschema:"full rebuild instead of delta"`
	Force   bool   `json:"force,omitempty" jsonschema:"materialize even when the graph is fresh"`
}

type MaterializeOutput struct {
	Success            bool     `json:"success"`
	Status             string   `json:"status"`
	WasStale           bool     `json:"wasStale"`
	StaleReason        string   `json:"staleReason,omitempty"`
	TablesMaterialized []string `json:"tablesMaterialized,omitempty"`
	TotalRows          int64    `json:"totalRows"`
	Message            string   `json:"message,omitempty"`
	Error              string   `json:"error,omitempty"`
}

func (s *Service) MaterializeGraph(ctx context.Context, _ *mcp.CallToolRequest, input MaterializeInput) (*mcp.CallToolResult, MaterializeOutput, error) {
	if input.GraphID == "" {
		return nil, MaterializeOutput{}, fmt.Errorf("graphId is required")
	}
	result := s.client.Materialization.Materialize(ctx, input.GraphID, graphlake.MaterializeOptions{
		Rebuild: input.Rebuild,
		Force:   input.Force,
	})
	return nil, MaterializeOutput{
		Success:            result.Success,
		Status:             result.Status,
		WasStale:           result.WasStale,
		StaleReason:        result.StaleReason,
		TablesMaterialized: result.TablesMaterialized,
		TotalRows:          result.TotalRows,
		Message:            result.Message,
		Error:              result.Error,
	}, nil
}

// --- materialization_status ---

type StatusInput struct {
	GraphID string `json:"graphId" jsonschema:"graph identifier"`
}

type StatusOutput struct {
	Available          bool    `json:"available"`
	IsStale            bool    `json:"isStale,omitempty"`
	StaleReason        string  `json:"staleReason,omitempty"`
	LastMaterializedAt string  `json:"lastMaterializedAt,omitempty"`
	HoursSince         float64 `json:"hoursSinceMaterialization,omitempty"`
	Message            string  `json:"message,omitempty"`
}

func (s *Service) MaterializationStatus(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	if input.GraphID == "" {
		return nil, StatusOutput{}, fmt.Errorf("graphId is required")
	}
	status := s.client.Materialization.Status(ctx, input.GraphID)
	if status == nil {
		return nil, StatusOutput{Available: false}, nil
	}
	out := StatusOutput{
		Available:          true,
		IsStale:            status.IsStale,
		StaleReason:        status.StaleReason,
		LastMaterializedAt: status.LastMaterializedAt,
		Message:            status.Message,
	}
	if status.HoursSinceMaterialization != nil {
		out.HoursSince = *status.HoursSinceMaterialization
	}
	return nil, out, nil
}

// --- run_query ---

type RunQueryInput struct {
	GraphID    string         `json:"graphId" jsonschema:"graph identifier"`
	Query      string         `json:"query" jsonschema:"Cypher query to execute"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"named query parameters"`
}

type RunQueryOutput struct {
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
}

func (s *Service) RunQuery(ctx context.Context, _ *mcp.CallToolRequest, input RunQueryInput) (*mcp.CallToolResult, RunQueryOutput, error) {
	if input.GraphID == "" || input.Query == "" {
		return nil, RunQueryOutput{}, fmt.Errorf("graphId and query are required")
	}
	result, err := s.client.Query.Query(ctx, input.GraphID, input.Query, input.Parameters)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	return nil, RunQueryOutput{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
	}, nil
}
