package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphlake "github.com/graphlake/graphlake-go"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := graphlake.New(graphlake.Config{BaseURL: srv.URL, APIKey: "test-key"},
		graphlake.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return NewService(client)
}

func TestService_CreateGraph(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"graph_id":"kg-new"}`)
	})

	_, out, err := svc.CreateGraph(context.Background(), nil, CreateGraphInput{Name: "ledger"})
	require.NoError(t, err)
	assert.Equal(t, "kg-new", out.GraphID)
}

func TestService_CreateGraph_RequiresName(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	_, _, err := svc.CreateGraph(context.Background(), nil, CreateGraphInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestService_UploadFile(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
			fmt.Fprintf(w, `{"file_id":"f1","upload_url":"%s/signed/f1","expires_in":3600}`, srv.URL)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPatch:
			fmt.Fprint(w, `{}`)
		default:
			http.Error(w, `{}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	client, err := graphlake.New(graphlake.Config{BaseURL: srv.URL, APIKey: "test-key"},
		graphlake.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	svc := NewService(client)

	path := filepath.Join(t.TempDir(), "e.parquet")
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	_, out, err := svc.UploadFile(context.Background(), nil, UploadFileInput{
		GraphID: "kg1", TableName: "Entity", Path: path,
	})
	require.NoError(t, err)
	assert.True(t, out.Success, out.Error)
	assert.Equal(t, "f1", out.FileID)
}

func TestService_ListTables(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tables":[{"table_name":"RELATES_TO","file_count":1,"uploaded_file_count":1,"row_count":10}],"total_count":1}`)
	})

	_, out, err := svc.ListTables(context.Background(), nil, ListTablesInput{GraphID: "kg1"})
	require.NoError(t, err)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "RELATES_TO", out.Tables[0].Name)
	assert.Equal(t, "relationship", out.Tables[0].Kind)
}

func TestService_IngestTables(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/ingest") {
			fmt.Fprint(w, `{"results":[{"table_name":"Entity","status":"success","rows_ingested":5}],"total_rows":5}`)
			return
		}
		fmt.Fprint(w, `{"tables":[{"table_name":"Entity","file_count":1,"uploaded_file_count":1}],"total_count":1}`)
	})

	_, out, err := svc.IngestTables(context.Background(), nil, IngestTablesInput{GraphID: "kg1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"Entity"}, out.SuccessfulTables)
	assert.EqualValues(t, 5, out.TotalRows)
}

func TestService_MaterializeGraph(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"completed","graph_id":"kg1","was_stale":true,"tables_materialized":["Entity"],"total_rows":5,"message":"done"}`)
	})

	_, out, err := svc.MaterializeGraph(context.Background(), nil, MaterializeInput{GraphID: "kg1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.WasStale)
	assert.Equal(t, []string{"Entity"}, out.TablesMaterialized)
}

func TestService_MaterializationStatus_Unavailable(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no such graph"}`, http.StatusNotFound)
	})

	_, out, err := svc.MaterializationStatus(context.Background(), nil, StatusInput{GraphID: "kg1"})
	require.NoError(t, err, "an unavailable status is not a tool failure")
	assert.False(t, out.Available)
}

func TestService_RunQuery(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"columns":["name"],"data":[{"name":"Acme"}],"row_count":1,"execution_time_ms":1.1}`)
	})

	_, out, err := svc.RunQuery(context.Background(), nil, RunQueryInput{
		GraphID: "kg1", Query: "MATCH (n) RETURN n.name AS name",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, out.Columns)
	assert.Equal(t, 1, out.RowCount)
}

func TestService_InputValidation(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	_, _, err := svc.UploadFile(ctx, nil, UploadFileInput{GraphID: "kg1"})
	assert.Error(t, err)
	_, _, err = svc.ListTables(ctx, nil, ListTablesInput{})
	assert.Error(t, err)
	_, _, err = svc.IngestTables(ctx, nil, IngestTablesInput{})
	assert.Error(t, err)
	_, _, err = svc.MaterializeGraph(ctx, nil, MaterializeInput{})
	assert.Error(t, err)
	_, _, err = svc.RunQuery(ctx, nil, RunQueryInput{GraphID: "kg1"})
	assert.Error(t, err)
}
