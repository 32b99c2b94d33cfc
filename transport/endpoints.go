package transport

import (
	"context"
	"net/http"
	"net/url"
)

// Typed call surface for the documented REST contract. One method per
// endpoint; each returns the decoded response and the classified error, with
// the raw envelope available for callers that normalize failures.

// CreateGraph creates a graph. POST /v1/graphs.
func (c *Client) CreateGraph(ctx context.Context, req CreateGraphRequest) (*CreateGraphResponse, *Response, error) {
	var out CreateGraphResponse
	env, err := c.Do(ctx, http.MethodPost, "/v1/graphs", req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// GetGraph fetches graph metadata. GET /v1/graphs/{graph_id}.
func (c *Client) GetGraph(ctx context.Context, graphID string) (*GraphInfoResponse, *Response, error) {
	var out GraphInfoResponse
	env, err := c.Do(ctx, http.MethodGet, "/v1/graphs/"+url.PathEscape(graphID), nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// ListGraphs enumerates the caller's graphs. GET /v1/graphs.
func (c *Client) ListGraphs(ctx context.Context) (*ListGraphsResponse, *Response, error) {
	var out ListGraphsResponse
	env, err := c.Do(ctx, http.MethodGet, "/v1/graphs", nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// DeleteGraph deletes a graph. DELETE /v1/graphs/{graph_id}.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, "/v1/graphs/"+url.PathEscape(graphID), nil, nil)
}

// GetOperation fetches one status snapshot. GET /v1/operations/{operation_id}.
func (c *Client) GetOperation(ctx context.Context, operationID string) (*OperationStatusResponse, *Response, error) {
	var out OperationStatusResponse
	env, err := c.Do(ctx, http.MethodGet, "/v1/operations/"+url.PathEscape(operationID), nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// StreamOperation opens the SSE status stream for one operation.
// GET /v1/operations/{operation_id}/stream.
func (c *Client) StreamOperation(ctx context.Context, operationID string) (<-chan Event, error) {
	return c.Stream(ctx, "/v1/operations/"+url.PathEscape(operationID)+"/stream")
}

// CancelOperation requests server-side cancellation of an operation.
// POST /v1/operations/{operation_id}/cancel.
func (c *Client) CancelOperation(ctx context.Context, operationID string) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/v1/operations/"+url.PathEscape(operationID)+"/cancel", nil, nil)
}

// RequestUpload asks for a pre-signed upload target.
// POST /v1/graphs/{graph_id}/tables/{table_name}/files.
func (c *Client) RequestUpload(ctx context.Context, graphID, tableName string, req UploadRequest) (*UploadTargetResponse, *Response, error) {
	var out UploadTargetResponse
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/tables/" + url.PathEscape(tableName) + "/files"
	env, err := c.Do(ctx, http.MethodPost, path, req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// ConfirmFile reports final size and row count for an uploaded file.
// PATCH /v1/graphs/{graph_id}/tables/files/{file_id}.
func (c *Client) ConfirmFile(ctx context.Context, graphID, fileID string, req FileConfirmRequest) (*StagingFileInfo, *Response, error) {
	var out StagingFileInfo
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/tables/files/" + url.PathEscape(fileID)
	env, err := c.Do(ctx, http.MethodPatch, path, req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// DeleteFile removes a staged file.
// DELETE /v1/graphs/{graph_id}/tables/files/{file_id}.
func (c *Client) DeleteFile(ctx context.Context, graphID, fileID string) (*Response, error) {
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/tables/files/" + url.PathEscape(fileID)
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// ListTables enumerates the staging tables of a graph.
// GET /v1/graphs/{graph_id}/tables.
func (c *Client) ListTables(ctx context.Context, graphID string) (*ListTablesResponse, *Response, error) {
	var out ListTablesResponse
	env, err := c.Do(ctx, http.MethodGet, "/v1/graphs/"+url.PathEscape(graphID)+"/tables", nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// ListTableFiles enumerates the staged files of one table.
// GET /v1/graphs/{graph_id}/tables/{table_name}/files.
func (c *Client) ListTableFiles(ctx context.Context, graphID, tableName string) (*ListFilesResponse, *Response, error) {
	var out ListFilesResponse
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/tables/" + url.PathEscape(tableName) + "/files"
	env, err := c.Do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// IngestTables triggers bulk ingestion. POST /v1/graphs/{graph_id}/tables/ingest.
// Returns a *ConflictError when another ingestion is in flight for the graph.
func (c *Client) IngestTables(ctx context.Context, graphID string, req IngestRequest) (*IngestResponse, *Response, error) {
	var out IngestResponse
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/tables/ingest"
	env, err := c.Do(ctx, http.MethodPost, path, req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// Materialize reconciles staging data into the graph.
// POST /v1/graphs/{graph_id}/materialize.
func (c *Client) Materialize(ctx context.Context, graphID string, req MaterializeRequest) (*MaterializeResponse, *Response, error) {
	var out MaterializeResponse
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/materialize"
	env, err := c.Do(ctx, http.MethodPost, path, req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// MaterializationStatus fetches the staleness snapshot.
// GET /v1/graphs/{graph_id}/materialize/status.
func (c *Client) MaterializationStatus(ctx context.Context, graphID string) (*MaterializationStatusResponse, *Response, error) {
	var out MaterializationStatusResponse
	path := "/v1/graphs/" + url.PathEscape(graphID) + "/materialize/status"
	env, err := c.Do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// Query executes a Cypher query. POST /v1/graphs/{graph_id}/query.
func (c *Client) Query(ctx context.Context, graphID string, req QueryRequest) (*QueryResponse, *Response, error) {
	var out QueryResponse
	env, err := c.Do(ctx, http.MethodPost, "/v1/graphs/"+url.PathEscape(graphID)+"/query", req, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}

// GetSchema fetches the declared schema. GET /v1/graphs/{graph_id}/schema.
func (c *Client) GetSchema(ctx context.Context, graphID string) (*SchemaResponse, *Response, error) {
	var out SchemaResponse
	env, err := c.Do(ctx, http.MethodGet, "/v1/graphs/"+url.PathEscape(graphID)+"/schema", nil, &out)
	if err != nil {
		return nil, env, err
	}
	return &out, env, nil
}
