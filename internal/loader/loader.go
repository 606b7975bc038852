// Package loader buffers variant rows and writes them to the store in
// fixed-size transactional batches.
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/genie-db/internal/store"
)

// DefaultBatchSize is the number of variants written per transaction.
const DefaultBatchSize = 10000

// Writer persists one batch atomically. *store.Store implements it.
type Writer interface {
	WriteBatch(ctx context.Context, variants []store.Variant, counts []store.PatientCount) error
}

// Loader accumulates variants with their patient counts and flushes them
// together once the variant buffer holds batchSize rows.
type Loader struct {
	w         Writer
	batchSize int
	logger    *zap.Logger

	variants []store.Variant
	counts   []store.PatientCount

	rows    int
	countsN int
	flushes int

	// OnFlush, if set, is called after each committed flush with the
	// total number of variants written so far.
	OnFlush func(total int)
}

// New creates a Loader. A batchSize below 1 uses DefaultBatchSize.
func New(w Writer, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		w:         w,
		batchSize: batchSize,
		logger:    zap.NewNop(),
		variants:  make([]store.Variant, 0, batchSize),
	}
}

// SetLogger sets the logger for batch messages.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Add buffers a variant and its patient counts, flushing when the batch is full.
func (l *Loader) Add(ctx context.Context, v store.Variant, counts []store.PatientCount) error {
	l.variants = append(l.variants, v)
	l.counts = append(l.counts, counts...)
	if len(l.variants) >= l.batchSize {
		return l.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered rows in one transaction. Both buffers are
// reset after a successful write. Flushing an empty buffer is a no-op.
func (l *Loader) Flush(ctx context.Context) error {
	if len(l.variants) == 0 && len(l.counts) == 0 {
		return nil
	}

	if err := l.w.WriteBatch(ctx, l.variants, l.counts); err != nil {
		return fmt.Errorf("write batch %d (variants %d-%d): %w",
			l.flushes+1, l.rows+1, l.rows+len(l.variants), err)
	}

	l.flushes++
	l.rows += len(l.variants)
	l.countsN += len(l.counts)
	l.logger.Debug("flushed batch",
		zap.Int("batch", l.flushes),
		zap.Int("variants", len(l.variants)),
		zap.Int("patient_counts", len(l.counts)))

	l.variants = l.variants[:0]
	l.counts = l.counts[:0]

	if l.OnFlush != nil {
		l.OnFlush(l.rows)
	}
	return nil
}

// Close flushes any remaining rows.
func (l *Loader) Close(ctx context.Context) error {
	return l.Flush(ctx)
}

// Rows returns the number of variants written.
func (l *Loader) Rows() int { return l.rows }

// PatientCounts returns the number of patient count rows written.
func (l *Loader) PatientCounts() int { return l.countsN }

// Flushes returns the number of committed batches.
func (l *Loader) Flushes() int { return l.flushes }
