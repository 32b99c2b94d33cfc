package graphlake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/graphlake/graphlake-go/internal/ctxlog"
	"github.com/graphlake/graphlake-go/transport"
)

// MonitorMode selects how Monitor acquires operation status.
type MonitorMode int

const (
	// ModeAuto opens the SSE stream first and falls back to polling.
	ModeAuto MonitorMode = iota
	// ModeStream prefers the SSE stream; the polling fallback still applies
	// when the stream cannot be established or is severed without a
	// terminal event.
	ModeStream
	// ModePoll skips the stream entirely. Appropriate for operations whose
	// expected latency is shorter than an SSE handshake.
	ModePoll
)

// MonitorOptions tunes one Monitor call. The zero value is usable.
type MonitorOptions struct {
	Mode MonitorMode

	// Timeout bounds the whole wait, whichever acquisition strategy
	// completes it. Defaults to 5 minutes.
	Timeout time.Duration

	// PollInterval is the initial delay between status requests. Defaults
	// to 500ms, growing by PollMultiplier up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollMultiplier  float64

	// MaxAttempts bounds polling attempts; zero means bounded by Timeout
	// only.
	MaxAttempts int

	// StreamGrace is how long stream establishment may take before the
	// monitor gives up on SSE and polls instead. Defaults to 2 seconds;
	// tune it to the deployment's handshake latency.
	StreamGrace time.Duration

	// MaxStreamSession bounds one SSE session, protecting against
	// connections that never terminate because a terminal event was
	// missed. Defaults to 30 minutes; the wait continues by polling.
	MaxStreamSession time.Duration

	// OnProgress is invoked at least once per observed status change.
	// Duplicate consecutive statuses are coalesced. Panics are recovered.
	OnProgress func(ProgressUpdate)
}

func (o MonitorOptions) withDefaults() MonitorOptions {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MaxPollInterval <= 0 {
		o.MaxPollInterval = 5 * time.Second
	}
	if o.PollMultiplier < 1 {
		o.PollMultiplier = 1.5
	}
	if o.StreamGrace <= 0 {
		o.StreamGrace = 2 * time.Second
	}
	if o.MaxStreamSession <= 0 {
		o.MaxStreamSession = 30 * time.Minute
	}
	return o
}

// OperationClient converts fire-and-forget server operations into a
// synchronous wait with progress visibility.
type OperationClient struct {
	tc    *transport.Client
	clock Clock
}

// NewOperationClient creates an OperationClient on the given transport.
func NewOperationClient(tc *transport.Client) *OperationClient {
	return &OperationClient{tc: tc, clock: SystemClock}
}

// Get fetches one status snapshot without waiting.
func (c *OperationClient) Get(ctx context.Context, operationID string) (*OperationResult, error) {
	st, _, err := c.tc.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	return &OperationResult{
		OperationID:  st.OperationID,
		Status:       OperationStatus(st.Status),
		Result:       st.Result,
		ErrorMessage: st.Error,
	}, nil
}

// Cancel requests server-side cancellation of an operation. A wait already
// monitoring it observes the cancelled terminal status.
func (c *OperationClient) Cancel(ctx context.Context, operationID string) error {
	_, err := c.tc.CancelOperation(ctx, operationID)
	return err
}

// Monitor waits for the operation to reach a terminal status. It opens the
// SSE stream when the mode allows and transparently falls back to polling
// when the stream fails to establish within the grace period or is severed
// without a terminal event; the resumption point is the last observed status,
// so no progress regresses. The caller observes one logical wait either way.
//
// A completed operation yields its result payload; completed-without-payload
// is a *transport.ProtocolError. Failed and cancelled statuses yield an
// *OperationFailedError. Exceeding the timeout yields a *TimeoutError;
// cancelling ctx yields a *CancelledError and releases the stream.
func (c *OperationClient) Monitor(ctx context.Context, operationID string, opts MonitorOptions) (*OperationResult, error) {
	if strings.TrimSpace(operationID) == "" {
		return nil, fmt.Errorf("graphlake: operation id is required")
	}
	o := opts.withDefaults()
	r := &monitorRun{c: c, id: operationID, opts: o, start: c.clock.Now()}

	if o.Mode != ModePoll {
		res, done, err := r.stream(ctx)
		if done {
			return res, err
		}
		ctxlog.FromContext(ctx).Debug("stream unavailable, falling back to polling",
			"operation_id", operationID, "last_status", r.lastStatus)
	}
	return r.poll(ctx)
}

// monitorRun is the state of one logical wait, shared between the streaming
// and polling phases so fallback resumes instead of restarting.
type monitorRun struct {
	c        *OperationClient
	id       string
	opts     MonitorOptions
	start    time.Time
	attempts int

	lastStatus  OperationStatus
	lastPercent *float64
}

func (r *monitorRun) elapsed() time.Duration {
	return r.c.clock.Now().Sub(r.start)
}

// observe records a status snapshot, reporting progress only when something
// changed. Unchanged consecutive statuses are a no-op.
func (r *monitorRun) observe(ctx context.Context, st *transport.OperationStatusResponse) {
	status := OperationStatus(st.Status)
	changed := status != r.lastStatus
	if !changed && st.Progress != nil {
		changed = r.lastPercent == nil || *st.Progress != *r.lastPercent
	}
	r.lastStatus = status
	if st.Progress != nil {
		r.lastPercent = st.Progress
	}
	if !changed || r.opts.OnProgress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			ctxlog.FromContext(ctx).Warn("progress callback panicked", "panic", rec)
		}
	}()
	r.opts.OnProgress(ProgressUpdate{
		OperationID: r.id,
		Status:      status,
		Percent:     st.Progress,
		Message:     st.Message,
	})
}

// finish maps a terminal snapshot to the wait's single outcome.
func (r *monitorRun) finish(st *transport.OperationStatusResponse) (*OperationResult, error) {
	status := OperationStatus(st.Status)
	switch status {
	case StatusCompleted:
		if len(st.Result) == 0 || string(st.Result) == "null" {
			return nil, &transport.ProtocolError{
				Message: fmt.Sprintf("operation %s completed with no result payload", r.id),
			}
		}
		return &OperationResult{
			OperationID: r.id,
			Status:      StatusCompleted,
			Result:      st.Result,
			Elapsed:     r.elapsed(),
			Attempts:    r.attempts,
		}, nil
	case StatusFailed, StatusCancelled:
		msg := st.Error
		if msg == "" {
			msg = st.Message
		}
		return nil, &OperationFailedError{OperationID: r.id, Status: status, Message: msg}
	default:
		return nil, &transport.ProtocolError{
			Message: fmt.Sprintf("operation %s: finish on non-terminal status %q", r.id, st.Status),
		}
	}
}

// stream runs the SSE phase. done=false means the wait should continue by
// polling from the last observed status.
func (r *monitorRun) stream(ctx context.Context) (res *OperationResult, done bool, err error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type established struct {
		ch  <-chan transport.Event
		err error
	}
	estCh := make(chan established, 1)
	go func() {
		ch, err := r.c.tc.StreamOperation(sctx, r.id)
		estCh <- established{ch, err}
	}()

	var events <-chan transport.Event
	select {
	case est := <-estCh:
		if est.err != nil {
			return nil, false, nil
		}
		events = est.ch
	case <-r.c.clock.After(r.opts.StreamGrace):
		// Handshake slower than the grace period; poll instead.
		return nil, false, nil
	case <-ctx.Done():
		return nil, true, ctxOutcome(ctx, "operation "+r.id, r.elapsed(), r.attempts)
	}

	remaining := r.opts.Timeout - r.elapsed()
	if remaining <= 0 {
		return nil, true, &TimeoutError{What: "operation " + r.id, Elapsed: r.elapsed(), Attempts: r.attempts}
	}
	deadline := r.c.clock.After(remaining)
	session := r.c.clock.After(r.opts.MaxStreamSession)

	for {
		select {
		case ev, ok := <-events:
			if !ok || ev.Err != nil {
				// Severed without a terminal event; resume by polling.
				return nil, false, nil
			}
			st, decodeErr := decodeOperationEvent(r.id, ev)
			if decodeErr != nil {
				ctxlog.FromContext(ctx).Debug("ignoring undecodable stream event",
					"operation_id", r.id, "event", ev.Name, "error", decodeErr)
				continue
			}
			r.observe(ctx, st)
			if OperationStatus(st.Status).IsTerminal() {
				res, err := r.finish(st)
				return res, true, err
			}
		case <-session:
			return nil, false, nil
		case <-deadline:
			return nil, true, &TimeoutError{What: "operation " + r.id, Elapsed: r.elapsed(), Attempts: r.attempts}
		case <-ctx.Done():
			return nil, true, ctxOutcome(ctx, "operation "+r.id, r.elapsed(), r.attempts)
		}
	}
}

// poll runs the polling phase: sleep, request, observe, until terminal or
// bounded out. Transient request failures count as missed polls.
func (r *monitorRun) poll(ctx context.Context) (*OperationResult, error) {
	interval := r.opts.PollInterval
	for {
		if r.elapsed() >= r.opts.Timeout {
			return nil, &TimeoutError{What: "operation " + r.id, Elapsed: r.elapsed(), Attempts: r.attempts}
		}
		if r.opts.MaxAttempts > 0 && r.attempts >= r.opts.MaxAttempts {
			return nil, &TimeoutError{What: "operation " + r.id, Elapsed: r.elapsed(), Attempts: r.attempts}
		}

		select {
		case <-r.c.clock.After(interval):
		case <-ctx.Done():
			return nil, ctxOutcome(ctx, "operation "+r.id, r.elapsed(), r.attempts)
		}

		r.attempts++
		st, _, err := r.c.tc.GetOperation(ctx, r.id)
		if err != nil {
			if transport.IsRetryable(err) {
				ctxlog.FromContext(ctx).Debug("status poll failed, will retry",
					"operation_id", r.id, "attempt", r.attempts, "error", err)
				continue
			}
			if ctx.Err() != nil {
				return nil, ctxOutcome(ctx, "operation "+r.id, r.elapsed(), r.attempts)
			}
			return nil, err
		}

		r.observe(ctx, st)
		if OperationStatus(st.Status).IsTerminal() {
			return r.finish(st)
		}

		interval = time.Duration(float64(interval) * r.opts.PollMultiplier)
		if interval > r.opts.MaxPollInterval {
			interval = r.opts.MaxPollInterval
		}
	}
}

// decodeOperationEvent maps an SSE event to a status snapshot. Named events
// without a status field in the payload derive the status from the event
// name.
func decodeOperationEvent(operationID string, ev transport.Event) (*transport.OperationStatusResponse, error) {
	var st transport.OperationStatusResponse
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			return nil, err
		}
	}
	if st.OperationID == "" {
		st.OperationID = operationID
	}
	if st.Status == "" {
		switch ev.Name {
		case "operation_started", "operation_progress":
			st.Status = string(StatusRunning)
		case "operation_completed":
			st.Status = string(StatusCompleted)
		case "operation_failed":
			st.Status = string(StatusFailed)
		case "operation_cancelled":
			st.Status = string(StatusCancelled)
		default:
			return nil, fmt.Errorf("event %q carries no status", ev.Name)
		}
	}
	return &st, nil
}
