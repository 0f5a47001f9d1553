package repository

import (
	"context"
	"errors"
	"time"

	"deposit-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDepositLinked is returned when a link commit loses the claim on a
	// deposit because another batch already holds it.
	ErrDepositLinked = errors.New("deposit already linked to a batch")
)

// LinkCommit describes one atomic batch<->deposit link. The store applies
// the batch status, the deposit link, and the audit row in a single
// all-or-nothing commit.
type LinkCommit struct {
	BatchID      uuid.UUID
	DepositID    uuid.UUID
	Status       string
	ReconciledAt time.Time

	// Force allows stealing a deposit that is already linked elsewhere
	// (manual match). The previous batch is reset to PENDING in the same
	// commit. Without Force the claim fails with ErrDepositLinked.
	Force bool

	Action           string
	AmountDifference decimal.Decimal
	PerformedBy      string
}

// StatusCount is one row of the grouped batch aggregate.
type StatusCount struct {
	Status string
	Count  int64
	Sum    decimal.Decimal
}

// Store is the record store consumed by the reconciliation engine. Two
// implementations exist: a gorm/postgres store for production and MemStore
// for tests.
type Store interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	GetBatchByExternalID(ctx context.Context, externalID string) (*models.Batch, error)
	GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error)

	// PendingBatches returns all PENDING batches ordered by batch date
	// ascending, then external id ascending.
	PendingBatches(ctx context.Context) ([]models.Batch, error)

	// UnlinkedDepositsInWindow returns deposits with no batch link whose
	// date falls in [from, to). Ordered by deposit date ascending, then
	// external id ascending.
	UnlinkedDepositsInWindow(ctx context.Context, from, to time.Time) ([]models.Deposit, error)

	// DepositForBatch returns the deposit linked to the batch, or nil when
	// none is linked.
	DepositForBatch(ctx context.Context, batchID uuid.UUID) (*models.Deposit, error)
	TransactionsForBatch(ctx context.Context, batchID uuid.UUID) ([]models.Transaction, error)

	BatchesForDay(ctx context.Context, day time.Time) ([]models.Batch, error)
	UnlinkedDepositsForDay(ctx context.Context, day time.Time) ([]models.Deposit, error)
	UnlinkedTransactionsForDay(ctx context.Context, day time.Time) ([]models.Transaction, error)

	// Upserts are keyed by external id. Re-importing a batch updates its
	// date and amount but never touches status, reconciledAt, or the
	// operator discrepancy fields.
	UpsertBatch(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Batch, error)
	UpsertDeposit(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Deposit, error)
	UpsertTransaction(ctx context.Context, externalID string, date time.Time, amount decimal.Decimal, description string) (*models.Transaction, error)

	LinkBatchDeposit(ctx context.Context, commit LinkCommit) error

	// UnlinkBatch resets the batch to PENDING, clears reconciledAt and the
	// linked deposit's reference, and writes an audit row, atomically.
	// Returns false when the batch was already PENDING (no-op success).
	UnlinkBatch(ctx context.Context, batchID uuid.UUID, performedBy string) (bool, error)

	// BatchStats returns count and amount sum per status from a single
	// grouped read.
	BatchStats(ctx context.Context) ([]StatusCount, error)

	// DeleteBatchCascade removes a batch, its linked transactions and audit
	// rows, and clears any deposit link, atomically.
	DeleteBatchCascade(ctx context.Context, batchID uuid.UUID) error
}

// DayBounds returns the [start, end) timestamps covering the calendar day
// of t in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
