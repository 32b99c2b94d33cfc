package graphlake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/graphlake/graphlake-go/transport"
)

// CreateGraphOptions tunes CreateGraphAndWait.
type CreateGraphOptions struct {
	// Timeout bounds the wait when creation is asynchronous. Defaults to
	// 60 seconds.
	Timeout time.Duration
	// PollInterval is the delay between status checks. Defaults to 2
	// seconds. Graph creation is a fast operation, so the monitor polls
	// rather than paying the SSE handshake.
	PollInterval time.Duration
	// OnProgress receives status lines.
	OnProgress ProgressFunc
}

// GraphClient manages graph lifecycle: creation (including the asynchronous
// path through the operation monitor), metadata, and deletion.
type GraphClient struct {
	tc  *transport.Client
	ops *OperationClient
}

// NewGraphClient creates a GraphClient. ops resolves asynchronous creations.
func NewGraphClient(tc *transport.Client, ops *OperationClient) *GraphClient {
	return &GraphClient{tc: tc, ops: ops}
}

// CreateGraphAndWait creates a graph and returns its id. A synchronous
// creation response short-circuits; an asynchronous one is resolved through
// the operation monitor. A response carrying neither a graph id nor an
// operation id is a *transport.ProtocolError.
func (c *GraphClient) CreateGraphAndWait(ctx context.Context, meta GraphMetadata, initial *InitialEntity, opts CreateGraphOptions) (string, error) {
	if meta.Name == "" {
		return "", fmt.Errorf("graphlake: graph name is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	req := transport.CreateGraphRequest{
		Metadata: transport.GraphMetadata{
			GraphName:        meta.Name,
			Description:      meta.Description,
			SchemaExtensions: meta.SchemaExtensions,
			Tags:             meta.Tags,
		},
	}
	if initial != nil {
		req.InitialEntity = &transport.InitialEntity{
			Name:           initial.Name,
			URI:            initial.URI,
			Category:       initial.Category,
			SIC:            initial.SIC,
			SICDescription: initial.SICDescription,
		}
	}

	notify(ctx, opts.OnProgress, "Creating graph: "+meta.Name)
	resp, _, err := c.tc.CreateGraph(ctx, req)
	if err != nil {
		return "", err
	}

	if resp.GraphID != "" {
		notify(ctx, opts.OnProgress, "Graph created: "+resp.GraphID)
		return resp.GraphID, nil
	}
	if resp.OperationID == "" {
		return "", &transport.ProtocolError{
			Message: "graph creation response carries neither graph_id nor operation_id",
		}
	}

	notify(ctx, opts.OnProgress, fmt.Sprintf("Graph creation queued (operation %s)", resp.OperationID))
	opResult, err := c.ops.Monitor(ctx, resp.OperationID, MonitorOptions{
		Mode:            ModePoll,
		Timeout:         opts.Timeout,
		PollInterval:    opts.PollInterval,
		MaxPollInterval: opts.PollInterval,
		OnProgress: func(u ProgressUpdate) {
			notify(ctx, opts.OnProgress, fmt.Sprintf("Status: %s", u.Status))
		},
	})
	if err != nil {
		return "", err
	}

	var created struct {
		GraphID string `json:"graph_id"`
	}
	if jsonErr := json.Unmarshal(opResult.Result, &created); jsonErr != nil || created.GraphID == "" {
		return "", &transport.ProtocolError{
			Message: fmt.Sprintf("operation %s completed but carries no graph_id", resp.OperationID),
		}
	}
	notify(ctx, opts.OnProgress, "Graph created: "+created.GraphID)
	return created.GraphID, nil
}

// GetGraphInfo fetches one graph's metadata.
func (c *GraphClient) GetGraphInfo(ctx context.Context, graphID string) (*GraphInfo, error) {
	resp, _, err := c.tc.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return &GraphInfo{
		GraphID:          resp.GraphID,
		Name:             resp.GraphName,
		Description:      resp.Description,
		SchemaExtensions: resp.SchemaExtensions,
		Tags:             resp.Tags,
		CreatedAt:        resp.CreatedAt,
		Status:           resp.Status,
	}, nil
}

// ListGraphs enumerates the caller's graphs.
func (c *GraphClient) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	resp, _, err := c.tc.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}
	graphs := make([]GraphInfo, 0, len(resp.Graphs))
	for _, g := range resp.Graphs {
		graphs = append(graphs, GraphInfo{
			GraphID:          g.GraphID,
			Name:             g.GraphName,
			Description:      g.Description,
			SchemaExtensions: g.SchemaExtensions,
			Tags:             g.Tags,
			CreatedAt:        g.CreatedAt,
			Status:           g.Status,
		})
	}
	return graphs, nil
}

// DeleteGraph deletes a graph and all of its staging data.
func (c *GraphClient) DeleteGraph(ctx context.Context, graphID string) error {
	_, err := c.tc.DeleteGraph(ctx, graphID)
	return err
}
