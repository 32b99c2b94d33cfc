package graphlake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphlake/graphlake-go/transport"
)

// uploadServer simulates the three-step upload workflow on one httptest
// server: target requests, pre-signed PUTs, and confirmations.
type uploadServer struct {
	srv *httptest.Server

	targetRequests atomic.Int64
	transfers      atomic.Int64
	confirms       atomic.Int64

	failTransfers atomic.Int64 // first N PUTs answer 500
	targetStatus  int          // non-zero forces this status on target requests
	expiresIn     int64

	mu            chan struct{} // buffered size 1, used as a mutex
	lastBody      []byte
	lastConfirm   []byte
	confirmedFile string
}

func newUploadServer(t *testing.T) *uploadServer {
	t.Helper()
	u := &uploadServer{expiresIn: 3600, mu: make(chan struct{}, 1)}
	u.mu <- struct{}{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
			n := u.targetRequests.Add(1)
			if u.targetStatus != 0 {
				http.Error(w, `{"detail":"rejected"}`, u.targetStatus)
				return
			}
			resp := transport.UploadTargetResponse{
				FileID:       fmt.Sprintf("file-%d", n),
				UploadURL:    u.srv.URL + fmt.Sprintf("/signed/file-%d", n),
				ExpiresIn:    u.expiresIn,
				TableCreated: n == 1,
			}
			json.NewEncoder(w).Encode(resp)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/signed/"):
			n := u.transfers.Add(1)
			if n <= u.failTransfers.Load() {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			body, _ := io.ReadAll(r.Body)
			<-u.mu
			u.lastBody = body
			u.mu <- struct{}{}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/tables/files/"):
			u.confirms.Add(1)
			body, _ := io.ReadAll(r.Body)
			<-u.mu
			u.lastConfirm = body
			u.confirmedFile = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			u.mu <- struct{}{}
			fmt.Fprint(w, `{}`)
		default:
			http.Error(w, `{"detail":"unexpected request"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func TestUploadBuffer_CompletesWorkflow(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	var progress []string
	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewReader([]byte("parquet-bytes")), 13, UploadOptions{
			FileName:   "entities.parquet",
			RowCount:   42,
			OnProgress: func(msg string) { progress = append(progress, msg) },
		})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "file-1", res.FileID)
	assert.Equal(t, "Entity", res.TableName)
	assert.True(t, res.TableCreated)
	assert.EqualValues(t, 13, res.SizeBytes)

	assert.EqualValues(t, 1, u.targetRequests.Load())
	assert.EqualValues(t, 1, u.transfers.Load())
	assert.EqualValues(t, 1, u.confirms.Load())
	assert.Equal(t, "parquet-bytes", string(u.lastBody))
	assert.JSONEq(t, `{"file_size_bytes":13,"row_count":42}`, string(u.lastConfirm))

	require.NotEmpty(t, progress)
	assert.Contains(t, progress[0], "Created staging table Entity")
	assert.Contains(t, progress[len(progress)-1], "Upload complete")
}

func TestUploadFile_ReadsFromDisk(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	path := filepath.Join(t.TempDir(), "rows.parquet")
	require.NoError(t, os.WriteFile(path, []byte("file-payload"), 0o644))

	res := c.Tables.UploadFile(context.Background(), "kg1", "Entity", path, UploadOptions{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "file-payload", string(u.lastBody))
	assert.EqualValues(t, 12, res.SizeBytes)
	// The confirm reports the transferred size; row count was unknown.
	assert.JSONEq(t, `{"file_size_bytes":12}`, string(u.lastConfirm))
}

func TestUploadFile_MissingFileFailsWithoutRequests(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadFile(context.Background(), "kg1", "Entity", "/no/such/file.parquet", UploadOptions{})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.EqualValues(t, 0, u.targetRequests.Load())
}

func TestUploadBuffer_RequiresFileName(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity", strings.NewReader("x"), 1, UploadOptions{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "file name")
}

func TestUploadBuffer_DrainsNonSeekableSource(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	// bytes.Buffer is not a Seeker; the payload must be drained so a retry
	// could restart from byte zero.
	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewBufferString("unseekable"), 0, UploadOptions{FileName: "u.parquet"})
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 10, res.SizeBytes)
	assert.Equal(t, "unseekable", string(u.lastBody))
}

func TestUpload_TransientTransferRetriedOnce(t *testing.T) {
	u := newUploadServer(t)
	u.failTransfers.Store(1)
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewReader([]byte("retry-me")), 8, UploadOptions{FileName: "r.parquet"})
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 2, u.transfers.Load())
	assert.Equal(t, "retry-me", string(u.lastBody), "retried transfer restarts from byte zero")
	// The file is confirmed exactly once regardless of transfer retries.
	assert.EqualValues(t, 1, u.confirms.Load())
}

func TestUpload_ValidationFailureNotRetried(t *testing.T) {
	u := newUploadServer(t)
	u.targetStatus = http.StatusUnprocessableEntity
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewReader([]byte("x")), 1, UploadOptions{FileName: "x.parquet"})
	assert.False(t, res.Success)
	assert.EqualValues(t, 1, u.targetRequests.Load(), "4xx is surfaced immediately")
	assert.EqualValues(t, 0, u.transfers.Load())
}

func TestUpload_ExpiredTargetReRequested(t *testing.T) {
	u := newUploadServer(t)
	u.expiresIn = 1 // inside the safety margin, so the target is stale on arrival
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewReader([]byte("late")), 4, UploadOptions{FileName: "l.parquet"})
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 2, u.targetRequests.Load(), "expired target is replaced, not reused")
	assert.Equal(t, "file-2", res.FileID)
	assert.Equal(t, "file-2", u.confirmedFile, "confirmation targets the fresh file id")
}

func TestUpload_ProgressPanicDoesNotAbort(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	res := c.Tables.UploadBuffer(context.Background(), "kg1", "Entity",
		bytes.NewReader([]byte("x")), 1, UploadOptions{
			FileName:   "x.parquet",
			OnProgress: func(string) { panic("observer bug") },
		})
	assert.True(t, res.Success, res.Error)
	assert.EqualValues(t, 1, u.confirms.Load())
}

func TestUploadFiles_BulkKeepsOrderAndIsolatesFailures(t *testing.T) {
	u := newUploadServer(t)
	c := newTestFacade(t, u.srv, newFakeClock())

	dir := t.TempDir()
	good1 := filepath.Join(dir, "a.parquet")
	good2 := filepath.Join(dir, "b.parquet")
	require.NoError(t, os.WriteFile(good1, []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(good2, []byte("bbb"), 0o644))

	results := c.Tables.UploadFiles(context.Background(), "kg1", []FileSpec{
		{TableName: "Entity", Path: good1},
		{TableName: "Entity", Path: filepath.Join(dir, "missing.parquet")},
		{TableName: "RELATES_TO", Path: good2},
	}, BulkUploadOptions{Parallelism: 2})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success, results[0].Error)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success, results[2].Error)
	assert.Equal(t, "RELATES_TO", results[2].TableName)
	assert.EqualValues(t, 2, u.confirms.Load())
}

// ingestServer answers the staging-table listing and the ingest request.
type ingestServer struct {
	srv *httptest.Server

	tables       []transport.StagingTableInfo
	ingestCalls  atomic.Int64
	ingestStatus int
	response     string
	lastRequest  atomic.Pointer[transport.IngestRequest]
	opStatus     string // body served for operation polls
}

func newIngestServer(t *testing.T) *ingestServer {
	t.Helper()
	s := &ingestServer{
		tables: []transport.StagingTableInfo{
			{TableName: "Entity", FileCount: 2, UploadedFileCount: 2, RowCount: 100},
			{TableName: "RELATES_TO", FileCount: 1, UploadedFileCount: 1, RowCount: 50},
			{TableName: "Empty", FileCount: 1, UploadedFileCount: 0},
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tables"):
			json.NewEncoder(w).Encode(transport.ListTablesResponse{Tables: s.tables, TotalCount: len(s.tables)})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tables/ingest"):
			s.ingestCalls.Add(1)
			var req transport.IngestRequest
			json.NewDecoder(r.Body).Decode(&req)
			s.lastRequest.Store(&req)
			if s.ingestStatus != 0 {
				http.Error(w, `{"detail":"ingestion already in progress"}`, s.ingestStatus)
				return
			}
			fmt.Fprint(w, s.response)
		case strings.Contains(r.URL.Path, "/v1/operations/") && strings.HasSuffix(r.URL.Path, "/stream"):
			http.Error(w, `{"detail":"streaming unavailable"}`, http.StatusNotFound)
		case strings.Contains(r.URL.Path, "/v1/operations/"):
			fmt.Fprint(w, s.opStatus)
		default:
			http.Error(w, `{"detail":"unexpected request"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func TestIngestAllTables_SkipsEmptyAndReportsOutcomes(t *testing.T) {
	s := newIngestServer(t)
	s.response = `{
		"results": [
			{"table_name":"Entity","status":"success","rows_ingested":100,"execution_time_ms":12.5},
			{"table_name":"RELATES_TO","status":"failed","error":"type mismatch"}
		],
		"total_rows": 100
	}`
	c := newTestFacade(t, s.srv, newFakeClock())

	var progress []string
	run, err := c.Tables.IngestAllTables(context.Background(), "kg1", IngestOptions{
		OnProgress: func(msg string) { progress = append(progress, msg) },
	})
	require.NoError(t, err)

	req := s.lastRequest.Load()
	require.NotNil(t, req)
	assert.Equal(t, []string{"Entity", "RELATES_TO"}, req.Tables, "tables without uploaded files are not requested")
	assert.False(t, req.IgnoreErrors)

	assert.False(t, run.Success, "a failed table fails the run when errors are not ignored")
	assert.Equal(t, []string{"Entity"}, run.SuccessfulTables)
	assert.Equal(t, []string{"RELATES_TO"}, run.FailedTables)
	assert.Equal(t, []string{"Empty"}, run.SkippedTables)
	assert.EqualValues(t, 100, run.TotalRows)
	require.Len(t, run.Tables, 3)

	assert.Contains(t, strings.Join(progress, "\n"), "Skipping Empty")
}

func TestIngestAllTables_IgnoreErrorsMakesRunSuccessful(t *testing.T) {
	s := newIngestServer(t)
	s.response = `{
		"results": [
			{"table_name":"Entity","status":"success","rows_ingested":100},
			{"table_name":"RELATES_TO","status":"failed","error":"type mismatch"}
		],
		"total_rows": 100
	}`
	c := newTestFacade(t, s.srv, newFakeClock())

	run, err := c.Tables.IngestAllTables(context.Background(), "kg1", IngestOptions{IgnoreErrors: true})
	require.NoError(t, err)
	assert.True(t, run.Success)
	assert.Equal(t, []string{"RELATES_TO"}, run.FailedTables, "per-table outcomes stay exact")

	req := s.lastRequest.Load()
	require.NotNil(t, req)
	assert.True(t, req.IgnoreErrors)
}

func TestIngestAllTables_NothingEligible(t *testing.T) {
	s := newIngestServer(t)
	s.tables = []transport.StagingTableInfo{
		{TableName: "Empty", FileCount: 3, UploadedFileCount: 0},
	}
	c := newTestFacade(t, s.srv, newFakeClock())

	run, err := c.Tables.IngestAllTables(context.Background(), "kg1", IngestOptions{})
	require.NoError(t, err)
	assert.True(t, run.Success, "nothing to do is success, not failure")
	assert.Equal(t, []string{"Empty"}, run.SkippedTables)
	assert.EqualValues(t, 0, s.ingestCalls.Load())
}

func TestIngestAllTables_ConflictNotRetried(t *testing.T) {
	s := newIngestServer(t)
	s.ingestStatus = http.StatusConflict
	c := newTestFacade(t, s.srv, newFakeClock())

	run, err := c.Tables.IngestAllTables(context.Background(), "kg1", IngestOptions{})
	require.Error(t, err)
	assert.True(t, transport.IsConflict(err))
	assert.EqualValues(t, 1, s.ingestCalls.Load(), "another ingestion running is not a transient fault")
	require.NotNil(t, run, "the partial run accumulated so far is returned")
	assert.Equal(t, []string{"Empty"}, run.SkippedTables)
}

func TestIngestAllTables_AsyncRebuildMonitoredToCompletion(t *testing.T) {
	s := newIngestServer(t)
	s.response = `{"operation_id":"op-rebuild","message":"queued"}`
	s.opStatus = `{
		"operation_id": "op-rebuild",
		"status": "completed",
		"result": {
			"results": [{"table_name":"Entity","status":"success","rows_ingested":100}],
			"total_rows": 100
		}
	}`
	c := newTestFacade(t, s.srv, newFakeClock())

	run, err := c.Tables.IngestAllTables(context.Background(), "kg1", IngestOptions{Rebuild: true})
	require.NoError(t, err)
	assert.True(t, run.Success)
	assert.Equal(t, []string{"Entity"}, run.SuccessfulTables)
	assert.EqualValues(t, 100, run.TotalRows)

	req := s.lastRequest.Load()
	require.NotNil(t, req)
	assert.True(t, req.Rebuild)
}

func TestListStagingTablesAndFiles(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/tables"):
			json.NewEncoder(w).Encode(transport.ListTablesResponse{Tables: []transport.StagingTableInfo{
				{TableName: "Entity", FileCount: 2, UploadedFileCount: 1, RowCount: 10, TotalSizeBytes: 2048},
			}})
		case strings.HasSuffix(r.URL.Path, "/tables/Entity/files"):
			rc := int64(10)
			json.NewEncoder(w).Encode(transport.ListFilesResponse{Files: []transport.StagingFileInfo{
				{FileID: "f1", TableName: "Entity", FileName: "a.parquet", SizeBytes: 2048, RowCount: &rc, Status: "uploaded", UploadedAt: &now},
			}})
		default:
			http.Error(w, `{}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	tables, err := c.Tables.ListStagingTables(context.Background(), "kg1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Entity", tables[0].Name)
	assert.Equal(t, 1, tables[0].UploadedFileCount)

	files, err := c.Tables.ListTableFiles(context.Background(), "kg1", "Entity")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].FileID)
	require.NotNil(t, files[0].RowCount)
	assert.EqualValues(t, 10, *files[0].RowCount)
}

func TestDeleteFile(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	require.NoError(t, c.Tables.DeleteFile(context.Background(), "kg1", "f1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/v1/graphs/kg1/tables/files/f1", gotPath)
}
