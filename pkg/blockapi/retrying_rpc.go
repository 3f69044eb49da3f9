package blockapi

import (
	"context"
	"fmt"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/logger"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// DiagnosticSink receives one line per retry past the first: the first
// failed attempt on a block stays silent (below verbosity 3), every attempt
// after that emits one diagnostic line. The default sink writes through internal/logger;
// tests substitute a recording sink instead of asserting against global
// log output.
type DiagnosticSink interface {
	Emit(blockRef, operation, errorKind string, retry int)
}

// LoggerSink is the default DiagnosticSink, writing through internal/logger.
type LoggerSink struct{}

func (LoggerSink) Emit(blockRef, operation, errorKind string, retry int) {
	logger.Warn(fmt.Sprintf("%s %s %s retry=%d", blockRef, operation, errorKind, retry))
}

// RetryingRpc wraps a Client, translating transport failures into
// unbounded retries plus classified diagnostics.
type RetryingRpc struct {
	client Client
	sink   DiagnosticSink
}

// New builds a RetryingRpc over client. A nil sink defaults to LoggerSink.
func New(client Client, sink DiagnosticSink) *RetryingRpc {
	if sink == nil {
		sink = LoggerSink{}
	}
	return &RetryingRpc{client: client, sink: sink}
}

func blockRef(snapshotID string, index uint32) string {
	return fmt.Sprintf("%s#%d", snapshotID, index)
}

// retryLoop runs fn until it succeeds or returns a non-retryable error. It
// is the single place the "first-retry-silent" rule is implemented.
func retryLoop(ctx context.Context, ref, op string, sink DiagnosticSink, fn func() error) error {
	attempt := 0
	for {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		classified := ferrors.Classify(err)
		if !classified.Retryable() {
			return &ferrors.Classified{Class: classified, Err: err}
		}

		quota := ""
		var c *ferrors.Classified
		if asClassified(err, &c) {
			quota = c.QuotaHandle
		}

		// "On every retry past the first" — the initial attempt failing is
		// the first retry and stays silent; every attempt after that is
		// logged, unless verbosity 3 asks to see every attempt including
		// the first.
		if attempt > 1 || logger.CurrentVerbosity() >= logger.VerbosityEveryTry {
			errKind := classified.String()
			if quota != "" {
				errKind = errKind + "(" + quota + ")"
			}
			sink.Emit(ref, op, errKind, attempt)
		}
	}
}

func asClassified(err error, target **ferrors.Classified) bool {
	if c, ok := err.(*ferrors.Classified); ok {
		*target = c
		return true
	}
	return false
}

// GetBlock fetches a block's payload and checksum, retrying indefinitely on
// transient failures (including ChecksumMismatch, which is validated by the
// caller and re-requested through this same path).
func (r *RetryingRpc) GetBlock(ctx context.Context, snapshotID string, index uint32, readToken string) ([]byte, string, error) {
	var chunk []byte
	var checksum string
	err := retryLoop(ctx, blockRef(snapshotID, index), "get_block", r.sink, func() error {
		var innerErr error
		chunk, checksum, innerErr = r.client.GetBlock(ctx, snapshotID, index, readToken)
		return innerErr
	})
	return chunk, checksum, err
}

// PutBlock writes a block, retrying indefinitely on transient failures.
func (r *RetryingRpc) PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) error {
	return retryLoop(ctx, blockRef(snapshotID, index), "put_block", r.sink, func() error {
		ack, innerErr := r.client.PutBlock(ctx, snapshotID, index, chunk, checksum)
		if innerErr != nil {
			return innerErr
		}
		if !ack {
			return fmt.Errorf("put_block: server did not acknowledge block %d", index)
		}
		return nil
	})
}

// ListBlocks fetches one page of a full-snapshot listing.
func (r *RetryingRpc) ListBlocks(ctx context.Context, snapshotID, cursor string) (snapshot.Page, error) {
	var page snapshot.Page
	err := retryLoop(ctx, snapshotID, "list_blocks", r.sink, func() error {
		var innerErr error
		page, innerErr = r.client.ListBlocks(ctx, snapshotID, cursor)
		return innerErr
	})
	return page, err
}

// ListChangedBlocks fetches one page of a differential listing.
func (r *RetryingRpc) ListChangedBlocks(ctx context.Context, snapshotIDA, snapshotIDB, cursor string) (snapshot.Page, error) {
	var page snapshot.Page
	err := retryLoop(ctx, snapshotIDA+".."+snapshotIDB, "list_changed_blocks", r.sink, func() error {
		var innerErr error
		page, innerErr = r.client.ListChangedBlocks(ctx, snapshotIDA, snapshotIDB, cursor)
		return innerErr
	})
	return page, err
}
