package graphlake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/graphlake/graphlake-go/internal/ctxlog"
	"github.com/graphlake/graphlake-go/transport"
	"golang.org/x/sync/errgroup"
)

// DefaultContentType is assumed for uploads that do not declare one.
const DefaultContentType = "application/vnd.apache.parquet"

// expirySafetyMargin keeps the client from starting a transfer against a
// target that would expire mid-flight.
const expirySafetyMargin = 5 * time.Second

// UploadOptions tunes one file upload.
type UploadOptions struct {
	// FileName overrides the name reported to the server. Required for
	// buffer uploads; defaults to the path's base name for file uploads.
	FileName string
	// ContentType defaults to DefaultContentType.
	ContentType string
	// RowCount, when known, is reported at confirmation time.
	RowCount int64
	// OnProgress receives a status line after each workflow step.
	OnProgress ProgressFunc
	// Retry bounds per-step retries of transient failures.
	Retry RetryPolicy
}

// FileSpec names one file for a bulk upload.
type FileSpec struct {
	TableName string
	Path      string
	Options   UploadOptions
}

// BulkUploadOptions tunes UploadFiles.
type BulkUploadOptions struct {
	// Parallelism bounds concurrent uploads. Defaults to 4.
	Parallelism int
}

// IngestOptions tunes IngestAllTables.
type IngestOptions struct {
	// IgnoreErrors lets one table's failure not abort the remaining
	// tables; the run is then successful regardless of per-table failures.
	IgnoreErrors bool
	// Rebuild requests full regeneration from the staging source of truth.
	// The client treats it as a longer-latency variant, not a different
	// protocol: the default timeout is extended and an asynchronous server
	// response is monitored to completion.
	Rebuild bool
	// Timeout bounds the run. Defaults to 5 minutes, 30 with Rebuild.
	Timeout time.Duration
	// OnProgress receives status lines as the run advances.
	OnProgress ProgressFunc
}

// TableClient drives staged data from local byte sources into the graph:
// the target/transfer/confirm upload workflow and bulk ingestion.
type TableClient struct {
	tc    *transport.Client
	ops   *OperationClient
	clock Clock
}

// NewTableClient creates a TableClient. ops monitors asynchronous rebuild
// ingestions.
func NewTableClient(tc *transport.Client, ops *OperationClient) *TableClient {
	return &TableClient{tc: tc, ops: ops, clock: SystemClock}
}

// uploadTarget is an UploadTargetResponse stamped with its issuance time so
// the expiry invariant can be enforced locally.
type uploadTarget struct {
	transport.UploadTargetResponse
	issued time.Time
}

func (t *uploadTarget) expired(now time.Time) bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	deadline := t.issued.Add(time.Duration(t.ExpiresIn) * time.Second)
	return !now.Add(expirySafetyMargin).Before(deadline)
}

// UploadFile stages one local file into a table of the graph. The result is
// always returned, never an error: Success=false carries a non-empty Error.
func (c *TableClient) UploadFile(ctx context.Context, graphID, tableName, path string, opts UploadOptions) *UploadResult {
	f, err := os.Open(path)
	if err != nil {
		return uploadFailure(tableName, fmt.Sprintf("open %s: %v", path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return uploadFailure(tableName, fmt.Sprintf("stat %s: %v", path, err))
	}
	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}
	return c.upload(ctx, graphID, tableName, f, info.Size(), opts)
}

// UploadBuffer stages an in-memory payload. When r is not seekable it is
// drained to memory first, because a failed transfer restarts from the
// beginning; there are no partial-file semantics.
func (c *TableClient) UploadBuffer(ctx context.Context, graphID, tableName string, r io.Reader, size int64, opts UploadOptions) *UploadResult {
	if opts.FileName == "" {
		return uploadFailure(tableName, "file name is required for buffer uploads")
	}
	src, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return uploadFailure(tableName, fmt.Sprintf("read buffer: %v", err))
		}
		src = bytes.NewReader(data)
		size = int64(len(data))
	}
	return c.upload(ctx, graphID, tableName, src, size, opts)
}

// upload runs the three-step workflow: request a target, transfer the bytes,
// confirm completion. Confirmation is the transition that makes the file
// visible to ingestion; transferred-but-unconfirmed bytes stay orphaned.
func (c *TableClient) upload(ctx context.Context, graphID, tableName string, src io.ReadSeeker, size int64, opts UploadOptions) *UploadResult {
	if opts.ContentType == "" {
		opts.ContentType = DefaultContentType
	}
	referenceID := uuid.NewString()

	requestTarget := func() (*uploadTarget, error) {
		var target *uploadTarget
		err := retryStep(ctx, c.clock, opts.Retry, "request upload target", func() error {
			resp, _, err := c.tc.RequestUpload(ctx, graphID, tableName, transport.UploadRequest{
				FileName:    opts.FileName,
				ContentType: opts.ContentType,
				SizeBytes:   size,
				ReferenceID: referenceID,
			})
			if err != nil {
				return err
			}
			target = &uploadTarget{UploadTargetResponse: *resp, issued: c.clock.Now()}
			return nil
		})
		return target, err
	}

	// Step 1: obtain the pre-signed target. Table auto-creation is a
	// signaled side effect, not an error.
	target, err := requestTarget()
	if err != nil {
		return uploadFailure(tableName, fmt.Sprintf("request upload target: %v", err))
	}
	if target.TableCreated {
		notify(ctx, opts.OnProgress, fmt.Sprintf("Created staging table %s", tableName))
	}
	notify(ctx, opts.OnProgress, fmt.Sprintf("Upload target ready for %s/%s (file %s)", tableName, opts.FileName, target.FileID))

	// Step 2: transfer the payload. An expired target is re-requested,
	// never reused; a failed transfer restarts from byte zero.
	err = retryStep(ctx, c.clock, opts.Retry, "transfer", func() error {
		if target.expired(c.clock.Now()) {
			ctxlog.FromContext(ctx).Debug("upload target expired, re-requesting",
				"table", tableName, "file_id", target.FileID)
			fresh, err := requestTarget()
			if err != nil {
				return err
			}
			target = fresh
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("graphlake: rewind upload source: %w", err)
		}
		return c.tc.Transfer(ctx, target.UploadURL, opts.ContentType, src, size)
	})
	if err != nil {
		return uploadFailure(tableName, fmt.Sprintf("transfer %s: %v", opts.FileName, err))
	}
	notify(ctx, opts.OnProgress, fmt.Sprintf("Transferred %s (%d bytes)", opts.FileName, size))

	// Step 3: confirm completion, making the file ingest-eligible.
	err = retryStep(ctx, c.clock, opts.Retry, "confirm upload", func() error {
		req := transport.FileConfirmRequest{FileSizeBytes: size}
		if opts.RowCount > 0 {
			rc := opts.RowCount
			req.RowCount = &rc
		}
		_, _, err := c.tc.ConfirmFile(ctx, graphID, target.FileID, req)
		return err
	})
	if err != nil {
		return uploadFailure(tableName, fmt.Sprintf("confirm upload of %s: %v", opts.FileName, err))
	}
	notify(ctx, opts.OnProgress, fmt.Sprintf("Upload complete: %s/%s", tableName, opts.FileName))

	return &UploadResult{
		Success:      true,
		FileID:       target.FileID,
		TableName:    tableName,
		TableCreated: target.TableCreated,
		SizeBytes:    size,
	}
}

// UploadFiles stages many files with bounded parallelism. Results line up
// with the input specs; one file's failure does not stop the others.
func (c *TableClient) UploadFiles(ctx context.Context, graphID string, files []FileSpec, opts BulkUploadOptions) []UploadResult {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	results := make([]UploadResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, spec := range files {
		g.Go(func() error {
			results[i] = *c.UploadFile(gctx, graphID, spec.TableName, spec.Path, spec.Options)
			return nil
		})
	}
	g.Wait()
	return results
}

// ListStagingTables enumerates the graph's staging tables. The view is
// server-computed and recomputed after each file mutation; it is never
// cached here.
func (c *TableClient) ListStagingTables(ctx context.Context, graphID string) ([]StagingTable, error) {
	resp, _, err := c.tc.ListTables(ctx, graphID)
	if err != nil {
		return nil, err
	}
	tables := make([]StagingTable, 0, len(resp.Tables))
	for _, t := range resp.Tables {
		tables = append(tables, stagingTableFromWire(t))
	}
	return tables, nil
}

// ListTableFiles enumerates the staged files of one table.
func (c *TableClient) ListTableFiles(ctx context.Context, graphID, tableName string) ([]StagingFile, error) {
	resp, _, err := c.tc.ListTableFiles(ctx, graphID, tableName)
	if err != nil {
		return nil, err
	}
	files := make([]StagingFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, stagingFileFromWire(f))
	}
	return files, nil
}

// DeleteFile removes a staged file.
func (c *TableClient) DeleteFile(ctx context.Context, graphID, fileID string) error {
	_, err := c.tc.DeleteFile(ctx, graphID, fileID)
	return err
}

// IngestAllTables ingests every staging table that has at least one uploaded
// file. Tables with zero eligible files are marked skipped and never
// attempted. A 409 from the server surfaces as a *transport.ConflictError
// and is never retried as if transient; the partial run result accumulated
// so far is returned alongside any error.
func (c *TableClient) IngestAllTables(ctx context.Context, graphID string, opts IngestOptions) (*IngestRunResult, error) {
	start := c.clock.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
		if opts.Rebuild {
			timeout = 30 * time.Minute
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tables, err := c.ListStagingTables(ctx, graphID)
	if err != nil {
		return nil, err
	}

	run := &IngestRunResult{}
	var eligible []string
	for _, t := range tables {
		if t.UploadedFileCount > 0 {
			eligible = append(eligible, t.Name)
			continue
		}
		run.Tables = append(run.Tables, TableIngestResult{TableName: t.Name, Status: IngestSkipped})
		run.SkippedTables = append(run.SkippedTables, t.Name)
		notify(ctx, opts.OnProgress, fmt.Sprintf("Skipping %s: no uploaded files", t.Name))
	}

	if len(eligible) == 0 {
		run.Success = true
		run.Elapsed = c.clock.Now().Sub(start)
		notify(ctx, opts.OnProgress, "Nothing to ingest")
		return run, nil
	}

	notify(ctx, opts.OnProgress, fmt.Sprintf("Ingesting %d tables...", len(eligible)))
	resp, _, err := c.tc.IngestTables(ctx, graphID, transport.IngestRequest{
		IgnoreErrors: opts.IgnoreErrors,
		Rebuild:      opts.Rebuild,
		Tables:       eligible,
	})
	if err != nil {
		run.Elapsed = c.clock.Now().Sub(start)
		if transport.IsConflict(err) {
			notify(ctx, opts.OnProgress, "Another ingestion is already running for this graph")
		}
		return run, err
	}

	// A rebuild the server chose to run asynchronously hands back an
	// operation id; the run completes through the monitor.
	if resp.OperationID != "" {
		notify(ctx, opts.OnProgress, fmt.Sprintf("Ingestion queued (operation %s)", resp.OperationID))
		opResult, err := c.ops.Monitor(ctx, resp.OperationID, MonitorOptions{
			Timeout: timeout - c.clock.Now().Sub(start),
		})
		if err != nil {
			run.Elapsed = c.clock.Now().Sub(start)
			return run, err
		}
		var finished transport.IngestResponse
		if jsonErr := json.Unmarshal(opResult.Result, &finished); jsonErr != nil {
			run.Elapsed = c.clock.Now().Sub(start)
			return run, &transport.ProtocolError{
				Message: fmt.Sprintf("ingest operation %s: undecodable result: %v", resp.OperationID, jsonErr),
			}
		}
		resp = &finished
	}

	for _, outcome := range resp.Results {
		result := TableIngestResult{
			TableName:     outcome.TableName,
			Status:        TableIngestStatus(outcome.Status),
			RowsIngested:  outcome.RowsIngested,
			ExecutionTime: millis(outcome.ExecutionTimeMS),
			Error:         outcome.Error,
		}
		run.Tables = append(run.Tables, result)
		switch result.Status {
		case IngestSuccess:
			run.SuccessfulTables = append(run.SuccessfulTables, result.TableName)
			run.TotalRows += result.RowsIngested
			notify(ctx, opts.OnProgress, fmt.Sprintf("Ingested %s: %d rows", result.TableName, result.RowsIngested))
		case IngestFailed:
			run.FailedTables = append(run.FailedTables, result.TableName)
			notify(ctx, opts.OnProgress, fmt.Sprintf("Failed %s: %s", result.TableName, result.Error))
		case IngestSkipped:
			run.SkippedTables = append(run.SkippedTables, result.TableName)
		}
	}

	run.Success = len(run.FailedTables) == 0 || opts.IgnoreErrors
	run.Elapsed = c.clock.Now().Sub(start)
	return run, nil
}

func uploadFailure(tableName, msg string) *UploadResult {
	return &UploadResult{Success: false, TableName: tableName, Error: msg}
}
