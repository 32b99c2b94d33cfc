package graphlake

import (
	"context"
	"fmt"

	"github.com/graphlake/graphlake-go/internal/ctxlog"
	"github.com/graphlake/graphlake-go/transport"
)

// MaterializeOptions tunes one materialization run.
type MaterializeOptions struct {
	// IgnoreErrors lets per-table failures not abort the run. Defaults to
	// true; set Strict to turn it off.
	Strict bool
	// Rebuild regenerates the whole graph from staging instead of applying
	// the delta.
	Rebuild bool
	// Force materializes even when the server considers the graph fresh.
	Force bool
	// OnProgress receives status lines.
	OnProgress ProgressFunc
}

// MaterializationClient requests reconciliation of the mutable staging area
// into the queryable graph and reports staleness. Staleness is a
// server-computed fact; the client never computes or caches it.
type MaterializationClient struct {
	tc *transport.Client
}

// NewMaterializationClient creates a MaterializationClient on the given
// transport.
func NewMaterializationClient(tc *transport.Client) *MaterializationClient {
	return &MaterializationClient{tc: tc}
}

// Materialize rebuilds the graph from the current staging state and clears
// the staleness flag. Ordinary failures, including any well-formed non-2xx
// response, are normalized into a result with Success=false and a
// best-effort error message; the call never returns a Go error for them.
func (c *MaterializationClient) Materialize(ctx context.Context, graphID string, opts MaterializeOptions) *MaterializationResult {
	notify(ctx, opts.OnProgress, "Starting graph materialization...")

	resp, _, err := c.tc.Materialize(ctx, graphID, transport.MaterializeRequest{
		IgnoreErrors: !opts.Strict,
		Rebuild:      opts.Rebuild,
		Force:        opts.Force,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("materialization failed", "graph_id", graphID, "error", err)
		msg := err.Error()
		notify(ctx, opts.OnProgress, "Materialization failed: "+msg)
		return &MaterializationResult{
			Status:  "failed",
			Message: msg,
			Error:   msg,
		}
	}

	result := &MaterializationResult{
		Status:             resp.Status,
		WasStale:           resp.WasStale,
		TablesMaterialized: resp.TablesMaterialized,
		TotalRows:          resp.TotalRows,
		ExecutionTime:      millis(resp.ExecutionTimeMS),
		Message:            resp.Message,
		Success:            true,
	}
	if resp.StaleReason != nil {
		result.StaleReason = *resp.StaleReason
	}
	notify(ctx, opts.OnProgress, fmt.Sprintf("Materialization complete: %d tables, %d rows in %s",
		len(result.TablesMaterialized), result.TotalRows, result.ExecutionTime))
	return result
}

// Status returns the graph's staleness snapshot, or nil on any failure.
// The status is advisory, so failures are logged rather than raised.
func (c *MaterializationClient) Status(ctx context.Context, graphID string) *MaterializationStatus {
	resp, _, err := c.tc.MaterializationStatus(ctx, graphID)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("materialization status unavailable", "graph_id", graphID, "error", err)
		return nil
	}

	status := &MaterializationStatus{
		GraphID:                   resp.GraphID,
		IsStale:                   resp.IsStale,
		MaterializationCount:      resp.MaterializationCount,
		HoursSinceMaterialization: resp.HoursSinceMaterialization,
		Message:                   resp.Message,
	}
	if resp.StaleReason != nil {
		status.StaleReason = *resp.StaleReason
	}
	if resp.StaleSince != nil {
		status.StaleSince = *resp.StaleSince
	}
	if resp.LastMaterializedAt != nil {
		status.LastMaterializedAt = *resp.LastMaterializedAt
	}
	return status
}
