package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphlake "github.com/graphlake/graphlake-go"
)

// setupSession wires the MCP server and a client together over in-memory
// transports, backed by an httptest GraphLake instance.
func setupSession(t *testing.T, handler http.HandlerFunc) *mcp.ClientSession {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := graphlake.New(graphlake.Config{BaseURL: srv.URL, APIKey: "test-key"},
		graphlake.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	server := NewServer(NewService(client))
	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err = server.Connect(ctx, st, nil)
	require.NoError(t, err)

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := mcpClient.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

func TestServer_ListTools(t *testing.T) {
	session := setupSession(t, func(w http.ResponseWriter, r *http.Request) {})

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"create_graph",
		"ingest_tables",
		"list_tables",
		"materialization_status",
		"materialize_graph",
		"run_query",
		"upload_file",
	}, names)
}

func TestServer_CallRunQuery(t *testing.T) {
	session := setupSession(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"columns":["n"],"data":[{"n":1}],"row_count":1,"execution_time_ms":0.5}`)
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "run_query",
		Arguments: map[string]any{
			"graphId": "kg1",
			"query":   "MATCH (n) RETURN count(n) AS n",
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out RunQueryOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out.RowCount)
	require.Len(t, out.Rows, 1)
}

func TestServer_CallToolValidationError(t *testing.T) {
	session := setupSession(t, func(w http.ResponseWriter, r *http.Request) {})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "create_graph",
		Arguments: map[string]any{"name": ""},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError, "handler validation surfaces as a tool error")
}
