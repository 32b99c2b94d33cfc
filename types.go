// Package graphlake is a client SDK for the GraphLake graph-database
// service: Cypher query execution, staging-table upload and ingestion,
// materialization, graph lifecycle, and monitoring of long-running server
// operations over SSE with a polling fallback.
//
// Every value returned by this package is a snapshot of remote state, valid
// only at the moment of the call that produced it. The client holds no
// authoritative copy and maintains no cross-call cache.
package graphlake

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/graphlake/graphlake-go/transport"
)

// OperationStatus is the lifecycle state of a server-tracked asynchronous
// operation. Statuses are monotonic per operation: once terminal, a status
// never regresses.
type OperationStatus string

const (
	StatusUnknown   OperationStatus = ""
	StatusQueued    OperationStatus = "queued"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
	StatusCancelled OperationStatus = "cancelled"
)

// IsTerminal returns true when the status is final.
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// OperationResult is the terminal outcome of one monitored operation.
// Result is populated for completed operations, ErrorMessage for failed ones.
type OperationResult struct {
	OperationID  string
	Status       OperationStatus
	Result       json.RawMessage
	ErrorMessage string
	Elapsed      time.Duration
	Attempts     int
}

// ProgressUpdate is delivered to a monitor's progress callback at least once
// per observed status change. Percent is nil when the server reported no
// numeric progress.
type ProgressUpdate struct {
	OperationID string
	Status      OperationStatus
	Percent     *float64
	Message     string
}

// ProgressFunc receives human-readable status lines from an orchestration
// call. Implementations need not be fast or safe: panics are recovered and
// logged, never allowed to abort the work they observe.
type ProgressFunc func(message string)

// UploadResult is the outcome of one file upload. Success is false iff Error
// is non-empty.
type UploadResult struct {
	Success      bool
	FileID       string
	TableName    string
	TableCreated bool
	SizeBytes    int64
	Error        string
}

// TableIngestStatus is the per-table outcome class of a bulk ingestion.
type TableIngestStatus string

const (
	IngestSuccess TableIngestStatus = "success"
	IngestFailed  TableIngestStatus = "failed"
	// IngestSkipped marks a table that had zero uploaded files and was never
	// attempted.
	IngestSkipped TableIngestStatus = "skipped"
)

// TableIngestResult is one table's outcome within a bulk ingestion run.
type TableIngestResult struct {
	TableName     string
	Status        TableIngestStatus
	RowsIngested  int64
	ExecutionTime time.Duration
	Error         string
}

// IngestRunResult is the run-level outcome of IngestAllTables. Success is
// true iff no table failed or IgnoreErrors was set; the per-table lists are
// exact regardless.
type IngestRunResult struct {
	Success          bool
	Tables           []TableIngestResult
	SuccessfulTables []string
	FailedTables     []string
	SkippedTables    []string
	TotalRows        int64
	Elapsed          time.Duration
}

// MaterializationResult reports one reconciliation run. Ordinary failure
// responses are normalized into Success=false with a best-effort Error
// message; only transport-level faults are also reflected here.
type MaterializationResult struct {
	Status             string
	WasStale           bool
	StaleReason        string
	TablesMaterialized []string
	TotalRows          int64
	ExecutionTime      time.Duration
	Message            string
	Success            bool
	Error              string
}

// MaterializationStatus is the advisory staleness snapshot of a graph.
type MaterializationStatus struct {
	GraphID                   string
	IsStale                   bool
	StaleReason               string
	StaleSince                string
	LastMaterializedAt        string
	MaterializationCount      int
	HoursSinceMaterialization *float64
	Message                   string
}

// GraphMetadata is the declared metadata for graph creation.
type GraphMetadata struct {
	Name             string
	Description      string
	SchemaExtensions []string
	Tags             []string
}

// InitialEntity optionally seeds a new graph with one entity.
type InitialEntity struct {
	Name           string
	URI            string
	Category       string
	SIC            string
	SICDescription string
}

// GraphInfo describes one graph.
type GraphInfo struct {
	GraphID          string
	Name             string
	Description      string
	SchemaExtensions []string
	Tags             []string
	CreatedAt        string
	Status           string
}

// TableKind classifies a staging table by what it feeds in the graph.
type TableKind string

const (
	TableKindNode         TableKind = "node"
	TableKindRelationship TableKind = "relationship"
)

// KindOfTable infers a staging table's kind from its name. Relationship
// tables follow the SCREAMING_SNAKE convention (all upper-case with an
// underscore, e.g. ENTITY_OWNS_ASSET); everything else is node-like.
func KindOfTable(name string) TableKind {
	if strings.Contains(name, "_") && name == strings.ToUpper(name) && name != strings.ToLower(name) {
		return TableKindRelationship
	}
	return TableKindNode
}

// StagingTable is the server-computed aggregate view of one staging table.
type StagingTable struct {
	Name              string
	Kind              TableKind
	FileCount         int
	UploadedFileCount int
	RowCount          int64
	TotalSizeBytes    int64
}

// StagingFile describes one staged file and its upload lifecycle
// (created, uploading, uploaded, failed).
type StagingFile struct {
	FileID      string
	TableName   string
	FileName    string
	ContentType string
	SizeBytes   int64
	RowCount    *int64
	Status      string
	CreatedAt   *time.Time
	UploadedAt  *time.Time
}

// QueryResult carries Cypher query results as row maps.
type QueryResult struct {
	Columns       []string
	Rows          []map[string]any
	RowCount      int
	ExecutionTime time.Duration
}

func stagingTableFromWire(t transport.StagingTableInfo) StagingTable {
	return StagingTable{
		Name:              t.TableName,
		Kind:              KindOfTable(t.TableName),
		FileCount:         t.FileCount,
		UploadedFileCount: t.UploadedFileCount,
		RowCount:          t.RowCount,
		TotalSizeBytes:    t.TotalSizeBytes,
	}
}

func stagingFileFromWire(f transport.StagingFileInfo) StagingFile {
	return StagingFile{
		FileID:      f.FileID,
		TableName:   f.TableName,
		FileName:    f.FileName,
		ContentType: f.ContentType,
		SizeBytes:   f.SizeBytes,
		RowCount:    f.RowCount,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		UploadedAt:  f.UploadedAt,
	}
}

// millis converts a server-reported execution time in milliseconds to a
// Duration.
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
