package transport

import (
	"encoding/json"
	"time"
)

// --- Graphs ---

// GraphMetadata is the declared metadata for a graph.
type GraphMetadata struct {
	GraphName        string   `json:"graph_name"`
	Description      string   `json:"description,omitempty"`
	SchemaExtensions []string `json:"schema_extensions,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// InitialEntity seeds a new graph with one entity at creation time.
type InitialEntity struct {
	Name           string `json:"name"`
	URI            string `json:"uri"`
	Category       string `json:"category,omitempty"`
	SIC            string `json:"sic,omitempty"`
	SICDescription string `json:"sic_description,omitempty"`
}

// CreateGraphRequest creates a graph.
type CreateGraphRequest struct {
	Metadata      GraphMetadata  `json:"metadata"`
	InitialEntity *InitialEntity `json:"initial_entity,omitempty"`
}

// CreateGraphResponse carries either the new graph id (synchronous creation)
// or an operation id to monitor (asynchronous creation). Exactly one is set.
type CreateGraphResponse struct {
	GraphID     string `json:"graph_id,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
}

// GraphInfoResponse describes one graph.
type GraphInfoResponse struct {
	GraphID          string   `json:"graph_id"`
	GraphName        string   `json:"graph_name"`
	Description      string   `json:"description,omitempty"`
	SchemaExtensions []string `json:"schema_extensions,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// ListGraphsResponse enumerates the caller's graphs.
type ListGraphsResponse struct {
	Graphs     []GraphInfoResponse `json:"graphs"`
	TotalCount int                 `json:"total_count"`
}

// --- Operations ---

// OperationStatusResponse is one snapshot of a server-tracked asynchronous
// operation. Result is populated only once Status is "completed"; Error only
// once Status is "failed".
type OperationStatusResponse struct {
	OperationID string          `json:"operation_id"`
	Status      string          `json:"status"`
	Progress    *float64        `json:"progress,omitempty"`
	Message     string          `json:"message,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// --- Staging tables and files ---

// UploadRequest asks for a pre-signed upload target for one file.
type UploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// UploadTargetResponse is the pre-signed destination for one file. The URL
// must not be used after ExpiresIn seconds from issuance. TableCreated
// signals that the staging table was auto-created as a side effect.
type UploadTargetResponse struct {
	FileID       string `json:"file_id"`
	UploadURL    string `json:"upload_url"`
	ExpiresIn    int64  `json:"expires_in"`
	TableCreated bool   `json:"table_created,omitempty"`
}

// FileConfirmRequest reports final size and row count after a transfer,
// completing the two-phase commit that makes the file ingest-eligible.
type FileConfirmRequest struct {
	FileSizeBytes int64  `json:"file_size_bytes"`
	RowCount      *int64 `json:"row_count,omitempty"`
}

// StagingFileInfo describes one staged file.
type StagingFileInfo struct {
	FileID        string     `json:"file_id"`
	TableName     string     `json:"table_name"`
	FileName      string     `json:"file_name"`
	ContentType   string     `json:"content_type,omitempty"`
	SizeBytes     int64      `json:"size_bytes"`
	RowCount      *int64     `json:"row_count,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UploadedAt    *time.Time `json:"uploaded_at,omitempty"`
}

// ListFilesResponse enumerates the staged files of one table.
type ListFilesResponse struct {
	Files      []StagingFileInfo `json:"files"`
	TotalCount int               `json:"total_count"`
}

// StagingTableInfo is the server-computed aggregate view of one staging
// table, recomputed after each file mutation. The client never caches it.
type StagingTableInfo struct {
	TableName         string `json:"table_name"`
	FileCount         int    `json:"file_count"`
	UploadedFileCount int    `json:"uploaded_file_count"`
	RowCount          int64  `json:"row_count"`
	TotalSizeBytes    int64  `json:"total_size_bytes"`
}

// ListTablesResponse enumerates the staging tables of one graph.
type ListTablesResponse struct {
	Tables     []StagingTableInfo `json:"tables"`
	TotalCount int                `json:"total_count"`
}

// --- Ingestion ---

// IngestRequest triggers bulk ingestion of staged data into the graph.
type IngestRequest struct {
	IgnoreErrors bool     `json:"ignore_errors"`
	Rebuild      bool     `json:"rebuild"`
	Tables       []string `json:"tables,omitempty"`
}

// TableIngestOutcome is the server's per-table ingestion result.
type TableIngestOutcome struct {
	TableName       string  `json:"table_name"`
	Status          string  `json:"status"`
	RowsIngested    int64   `json:"rows_ingested"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	Error           string  `json:"error,omitempty"`
}

// IngestResponse is the run-level ingestion result. A rebuild the server
// chose to run asynchronously carries an OperationID instead of Results.
type IngestResponse struct {
	OperationID     string               `json:"operation_id,omitempty"`
	Results         []TableIngestOutcome `json:"results,omitempty"`
	TotalRows       int64                `json:"total_rows"`
	ExecutionTimeMS float64              `json:"execution_time_ms"`
	Message         string               `json:"message,omitempty"`
}

// --- Materialization ---

// MaterializeRequest requests reconciliation of staging data into the graph.
type MaterializeRequest struct {
	IgnoreErrors bool `json:"ignore_errors"`
	Rebuild      bool `json:"rebuild"`
	Force        bool `json:"force"`
}

// MaterializeResponse reports one reconciliation run.
type MaterializeResponse struct {
	Status             string   `json:"status"`
	GraphID            string   `json:"graph_id"`
	WasStale           bool     `json:"was_stale"`
	StaleReason        *string  `json:"stale_reason,omitempty"`
	TablesMaterialized []string `json:"tables_materialized"`
	TotalRows          int64    `json:"total_rows"`
	ExecutionTimeMS    float64  `json:"execution_time_ms"`
	Message            string   `json:"message"`
}

// MaterializationStatusResponse reports the server-computed staleness of a
// graph relative to its staging tables.
type MaterializationStatusResponse struct {
	GraphID                    string   `json:"graph_id"`
	IsStale                    bool     `json:"is_stale"`
	StaleReason                *string  `json:"stale_reason,omitempty"`
	StaleSince                 *string  `json:"stale_since,omitempty"`
	LastMaterializedAt         *string  `json:"last_materialized_at,omitempty"`
	MaterializationCount       int      `json:"materialization_count"`
	HoursSinceMaterialization  *float64 `json:"hours_since_materialization,omitempty"`
	Message                    string   `json:"message"`
}

// --- Query and schema ---

// QueryRequest executes a Cypher query against the graph.
type QueryRequest struct {
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// QueryResponse carries query results as row maps.
type QueryResponse struct {
	Columns         []string         `json:"columns,omitempty"`
	Data            []map[string]any `json:"data"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
}

// SchemaResponse is the declared schema of a graph.
type SchemaResponse struct {
	GraphID       string          `json:"graph_id"`
	Nodes         json.RawMessage `json:"nodes,omitempty"`
	Relationships json.RawMessage `json:"relationships,omitempty"`
}
