package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// DefaultChunkSize is used when no chunk size is configured.
const DefaultChunkSize = 100

// ImportErrorPersistence marks rows rejected by the store.
const ImportErrorPersistence = "persistence"

// NotCommittedReason is reported for rows left over when the store goes away.
const NotCommittedReason = "not committed: database unavailable"

// BatchStore persists validated rows. InsertBatch must be all-or-nothing.
type BatchStore[T any] interface {
	InsertBatch(ctx context.Context, items []T) error
	InsertOne(ctx context.Context, item T) error
}

// Staged is a validated value waiting to be committed.
type Staged[T any] struct {
	Row   int
	Key   string
	Value T
}

// BatchCommitter inserts staged rows chunk by chunk and falls back to single
// inserts when a chunk is rejected.
type BatchCommitter[T any] struct {
	store     BatchStore[T]
	chunkSize int
	logger    *zap.Logger
}

// NewBatchCommitter constructs a committer. Non-positive chunk sizes fall back
// to DefaultChunkSize.
func NewBatchCommitter[T any](store BatchStore[T], chunkSize int, logger *zap.Logger) *BatchCommitter[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchCommitter[T]{store: store, chunkSize: chunkSize, logger: logger}
}

// Commit persists items and reports per-row failures. A non-nil error means
// the store became unreachable; rows committed before that stay committed and
// are returned alongside the error, and every row not yet committed is
// reported as a persistence failure so the counts still cover all items.
func (c *BatchCommitter[T]) Commit(ctx context.Context, items []Staged[T]) ([]T, []dto.ImportRowError, error) {
	inserted := make([]T, 0, len(items))
	var failures []dto.ImportRowError

	abort := func(pending []Staged[T], err error, message string) ([]T, []dto.ImportRowError, error) {
		for _, item := range pending {
			failures = append(failures, dto.ImportRowError{
				Row:    item.Row,
				Key:    item.Key,
				Kind:   ImportErrorPersistence,
				Reason: NotCommittedReason,
			})
		}
		return inserted, failures, appErrors.Wrap(err, appErrors.ErrImportFailed.Code, appErrors.ErrImportFailed.Status, message)
	}

	for start := 0; start < len(items); start += c.chunkSize {
		if err := ctx.Err(); err != nil {
			return abort(items[start:], err, "import interrupted")
		}

		end := start + c.chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		values := make([]T, len(chunk))
		for i, item := range chunk {
			values[i] = item.Value
		}

		err := c.store.InsertBatch(ctx, values)
		if err == nil {
			inserted = append(inserted, values...)
			continue
		}
		if IsFatalStoreError(err) {
			return abort(items[start:], err, "database unavailable during import")
		}

		c.logger.Warn("chunk insert failed, retrying rows individually",
			zap.Int("first_row", chunk[0].Row),
			zap.Int("size", len(chunk)),
			zap.Error(err),
		)

		for i, item := range chunk {
			if err := c.store.InsertOne(ctx, item.Value); err != nil {
				if IsFatalStoreError(err) {
					return abort(items[start+i:], err, "database unavailable during import")
				}
				failures = append(failures, dto.ImportRowError{
					Row:    item.Row,
					Key:    item.Key,
					Kind:   ImportErrorPersistence,
					Reason: fmt.Sprintf("Error adding record to database: %v", err),
				})
				continue
			}
			inserted = append(inserted, item.Value)
		}
	}

	return inserted, failures, nil
}

// IsFatalStoreError reports errors that mean the store itself is gone rather
// than one row being bad.
func IsFatalStoreError(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
