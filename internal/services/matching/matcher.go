package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"deposit-reconciliation-backend/internal/models"
	"deposit-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrBatchNotFound   = errors.New("batch not found")
	ErrDepositNotFound = errors.New("deposit not found")
	ErrInvalidInput    = errors.New("batch id and deposit id are required")
)

// Config carries the tunables of a matching run. Injected at construction
// so tests can use arbitrary values.
type Config struct {
	// Tolerance is the maximum absolute amount difference accepted when
	// pairing a batch with a deposit.
	Tolerance decimal.Decimal
	// WindowDays is how many days either side of the batch date a deposit
	// may fall and still be a candidate. 1 gives the usual 3-day window
	// absorbing settlement-timing skew.
	WindowDays int
}

func DefaultConfig() Config {
	return Config{
		Tolerance:  decimal.NewFromFloat(0.01),
		WindowDays: 1,
	}
}

// Outcome values recorded in run details.
const (
	OutcomeMatched     = "matched"
	OutcomeDiscrepancy = "discrepancy"
	OutcomeUnmatched   = "unmatched"
)

// MatchDetail is the per-batch record of one auto-match evaluation.
type MatchDetail struct {
	BatchExternalID   string          `json:"batch_external_id"`
	DepositExternalID string          `json:"deposit_external_id,omitempty"`
	Outcome           string          `json:"outcome"`
	AmountDifference  decimal.Decimal `json:"amount_difference"`
}

// RunResult summarizes one auto-match run.
type RunResult struct {
	Matched       int           `json:"matched"`
	Discrepancies int           `json:"discrepancies"`
	Unmatched     int           `json:"unmatched"`
	Details       []MatchDetail `json:"details"`
}

// MatchOutcome is the result of a manual match.
type MatchOutcome struct {
	Status           string          `json:"status"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
}

// Stats is an aggregate snapshot of all batches grouped by status.
type Stats struct {
	Total         int64           `json:"total"`
	Matched       int64           `json:"matched"`
	Discrepancies int64           `json:"discrepancies"`
	Pending       int64           `json:"pending"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`
}

// Matcher pairs pending settlement batches with unlinked deposits and
// maintains the bidirectional link through the store's atomic commits.
type Matcher struct {
	store repository.Store
	cfg   Config
}

func New(store repository.Store, cfg Config) *Matcher {
	return &Matcher{store: store, cfg: cfg}
}

// AutoMatch runs a matching pass with the configured tolerance.
func (m *Matcher) AutoMatch(ctx context.Context) (*RunResult, error) {
	return m.AutoMatchWithTolerance(ctx, m.cfg.Tolerance)
}

// AutoMatchWithTolerance runs a matching pass with a per-run tolerance
// override. Batches are processed in batch-date order, earliest first, and
// each pairing is committed before the next batch is evaluated, so a
// deposit consumed earlier in the run is already out of the candidate pool.
// Running twice with no new data produces zero additional matches.
func (m *Matcher) AutoMatchWithTolerance(ctx context.Context, tolerance decimal.Decimal) (*RunResult, error) {
	pending, err := m.store.PendingBatches(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Details: []MatchDetail{}}
	for i := range pending {
		batch := &pending[i]
		best, diff, err := m.findCandidate(ctx, batch, tolerance)
		if err != nil {
			return nil, err
		}
		if best == nil {
			result.Unmatched++
			result.Details = append(result.Details, MatchDetail{
				BatchExternalID: batch.ExternalID,
				Outcome:         OutcomeUnmatched,
			})
			continue
		}

		status := models.BatchStatusDiscrepancy
		outcome := OutcomeDiscrepancy
		if diff.IsZero() {
			status = models.BatchStatusMatched
			outcome = OutcomeMatched
		}

		err = m.store.LinkBatchDeposit(ctx, repository.LinkCommit{
			BatchID:          batch.ID,
			DepositID:        best.ID,
			Status:           status,
			ReconciledAt:     time.Now(),
			Action:           models.AuditActionAutoMatch,
			AmountDifference: diff,
			PerformedBy:      "auto-match",
		})
		if errors.Is(err, repository.ErrDepositLinked) {
			// Lost the claim to a concurrent run; the batch stays PENDING
			// and is picked up next pass.
			result.Unmatched++
			result.Details = append(result.Details, MatchDetail{
				BatchExternalID: batch.ExternalID,
				Outcome:         OutcomeUnmatched,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		if status == models.BatchStatusMatched {
			result.Matched++
		} else {
			result.Discrepancies++
		}
		result.Details = append(result.Details, MatchDetail{
			BatchExternalID:   batch.ExternalID,
			DepositExternalID: best.ExternalID,
			Outcome:           outcome,
			AmountDifference:  diff,
		})
	}
	return result, nil
}

// findCandidate returns the unlinked deposit closest in amount to the
// batch total within tolerance, or nil when none qualifies. Ties on amount
// distance break to the earliest deposit date, then lowest external id.
func (m *Matcher) findCandidate(ctx context.Context, batch *models.Batch, tolerance decimal.Decimal) (*models.Deposit, decimal.Decimal, error) {
	day, _ := repository.DayBounds(batch.BatchDate)
	from := day.AddDate(0, 0, -m.cfg.WindowDays)
	to := day.AddDate(0, 0, m.cfg.WindowDays+1)

	candidates, err := m.store.UnlinkedDepositsInWindow(ctx, from, to)
	if err != nil {
		return nil, decimal.Zero, err
	}

	eligible := candidates[:0]
	for _, d := range candidates {
		if d.TotalAmount.Sub(batch.TotalAmount).Abs().LessThanOrEqual(tolerance) {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		return nil, decimal.Zero, nil
	}

	// Candidates arrive ordered by date then external id; a stable sort on
	// amount distance keeps that order as the tie-break.
	sort.SliceStable(eligible, func(i, j int) bool {
		di := eligible[i].TotalAmount.Sub(batch.TotalAmount).Abs()
		dj := eligible[j].TotalAmount.Sub(batch.TotalAmount).Abs()
		return di.LessThan(dj)
	})

	best := eligible[0]
	return &best, best.TotalAmount.Sub(batch.TotalAmount).Abs(), nil
}

// ManualMatch force-links a batch to a deposit with no date-window
// restriction; operator judgment overrides the search heuristics. A deposit
// already linked elsewhere is stolen, and its previous batch is reset to
// PENDING inside the same commit.
func (m *Matcher) ManualMatch(ctx context.Context, batchID, depositID uuid.UUID) (*MatchOutcome, error) {
	if batchID == uuid.Nil || depositID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	batch, err := m.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	dep, err := m.store.GetDeposit(ctx, depositID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}

	diff := dep.TotalAmount.Sub(batch.TotalAmount).Abs()
	status := models.BatchStatusDiscrepancy
	if diff.IsZero() {
		status = models.BatchStatusMatched
	}

	err = m.store.LinkBatchDeposit(ctx, repository.LinkCommit{
		BatchID:          batchID,
		DepositID:        depositID,
		Status:           status,
		ReconciledAt:     time.Now(),
		Force:            true,
		Action:           models.AuditActionManualMatch,
		AmountDifference: diff,
		PerformedBy:      "operator",
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &MatchOutcome{Status: status, AmountDifference: diff}, nil
}

// Unmatch resets a batch to PENDING and clears the deposit link.
// Unmatching an already-pending batch is a successful no-op.
func (m *Matcher) Unmatch(ctx context.Context, batchID uuid.UUID) error {
	if batchID == uuid.Nil {
		return ErrInvalidInput
	}
	_, err := m.store.UnlinkBatch(ctx, batchID, "operator")
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBatchNotFound
	}
	return err
}

// Stats aggregates all batches from a single grouped read so counts and
// sums come from one logical snapshot.
func (m *Matcher) Stats(ctx context.Context) (*Stats, error) {
	rows, err := m.store.BatchStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAmount = stats.TotalAmount.Add(r.Sum)
		switch r.Status {
		case models.BatchStatusMatched:
			stats.Matched = r.Count
			stats.MatchedAmount = r.Sum
		case models.BatchStatusDiscrepancy:
			stats.Discrepancies = r.Count
		case models.BatchStatusPending:
			stats.Pending = r.Count
		}
	}
	return stats, nil
}
