package graphlake

import (
	"context"
	"fmt"

	"github.com/graphlake/graphlake-go/transport"
)

// QueryClient executes Cypher queries against a materialized graph.
type QueryClient struct {
	tc *transport.Client
}

// NewQueryClient creates a QueryClient on the given transport.
func NewQueryClient(tc *transport.Client) *QueryClient {
	return &QueryClient{tc: tc}
}

// Query executes one Cypher query and returns its rows.
func (c *QueryClient) Query(ctx context.Context, graphID, cypher string, params map[string]any) (*QueryResult, error) {
	if cypher == "" {
		return nil, fmt.Errorf("graphlake: query is required")
	}
	resp, _, err := c.tc.Query(ctx, graphID, transport.QueryRequest{
		Query:      cypher,
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Columns:       resp.Columns,
		Rows:          resp.Data,
		RowCount:      resp.RowCount,
		ExecutionTime: millis(resp.ExecutionTimeMS),
	}, nil
}

// GetSchema fetches the graph's declared schema.
func (c *QueryClient) GetSchema(ctx context.Context, graphID string) (*transport.SchemaResponse, error) {
	resp, _, err := c.tc.GetSchema(ctx, graphID)
	return resp, err
}
