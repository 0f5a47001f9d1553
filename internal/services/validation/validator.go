package validation

import (
	"context"
	"errors"

	"deposit-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrBatchNotFound = errors.New("batch not found")

// Result reports whether a batch's linked transactions reconcile to its
// total. Difference is absolute; callers wanting sign use the daily report.
type Result struct {
	Valid          bool            `json:"valid"`
	BatchTotal     decimal.Decimal `json:"batch_total"`
	TransactionSum decimal.Decimal `json:"transaction_sum"`
	Difference     decimal.Decimal `json:"difference"`
}

// Validator checks batch totals against their linked point-of-sale
// transactions. Read-only; safe to call repeatedly and concurrently.
type Validator struct {
	store     repository.Store
	tolerance decimal.Decimal
}

func New(store repository.Store, tolerance decimal.Decimal) *Validator {
	return &Validator{store: store, tolerance: tolerance}
}

func (v *Validator) Validate(ctx context.Context, batchID uuid.UUID) (*Result, error) {
	batch, err := v.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	txs, err := v.store.TransactionsForBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	// A batch with no linked transactions sums to zero and comes out
	// invalid unless its total is itself near zero.
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}

	diff := batch.TotalAmount.Sub(sum).Abs()
	return &Result{
		Valid:          diff.LessThan(v.tolerance),
		BatchTotal:     batch.TotalAmount,
		TransactionSum: sum,
		Difference:     diff,
	}, nil
}
