package reports

import (
	"context"
	"fmt"
	"time"

	"deposit-reconciliation-backend/internal/models"
	"deposit-reconciliation-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Issue types surfaced by the daily report.
const (
	IssueAmountMismatch       = "amount_mismatch"
	IssueCategoryReview       = "category_review"
	IssueNoQBOMatch           = "no_qbo_match"
	IssueUnmatchedDeposit     = "unmatched_deposit"
	IssueUnlinkedTransactions = "unlinked_transactions"
)

// Day statuses, in precedence order issues > pending > matched.
const (
	DayStatusIssues  = "issues"
	DayStatusPending = "pending"
	DayStatusMatched = "matched"
)

type Issue struct {
	Type              string `json:"type"`
	BatchExternalID   string `json:"batch_external_id,omitempty"`
	DepositExternalID string `json:"deposit_external_id,omitempty"`
	Message           string `json:"message"`
}

// BatchReport is one batch of the day with its linked records.
// BPDifference is signed: positive means the batch is short of
// point-of-sale coverage, negative means it is over.
type BatchReport struct {
	Batch        models.Batch         `json:"batch"`
	QBODeposit   *models.Deposit      `json:"qbo_deposit"`
	Transactions []models.Transaction `json:"transactions"`
	BPSum        decimal.Decimal      `json:"bp_sum"`
	BPDifference decimal.Decimal      `json:"bp_difference"`
}

// Summary holds the three per-source totals. They are computed from
// disjoint entity sets and are expected to diverge; surfacing that
// divergence is what the report is for.
type Summary struct {
	QBOTotal decimal.Decimal `json:"qbo_total"`
	MSCTotal decimal.Decimal `json:"msc_total"`
	BPTotal  decimal.Decimal `json:"bp_total"`
}

type DailyReport struct {
	Date                 string               `json:"date"`
	Status               string               `json:"status"`
	Summary              Summary              `json:"summary"`
	Issues               []Issue              `json:"issues"`
	Batches              []BatchReport        `json:"batches"`
	UnmatchedDeposits    []models.Deposit     `json:"unmatched_deposits"`
	UnlinkedTransactions []models.Transaction `json:"unlinked_transactions"`
}

// Aggregator joins the day's batches, deposits and transactions into a
// reconciliation summary. Read-only.
type Aggregator struct {
	store     repository.Store
	tolerance decimal.Decimal
}

func New(store repository.Store, tolerance decimal.Decimal) *Aggregator {
	return &Aggregator{store: store, tolerance: tolerance}
}

func (a *Aggregator) DailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	batches, err := a.store.BatchesForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	unmatchedDeposits, err := a.store.UnlinkedDepositsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	unlinkedTxs, err := a.store.UnlinkedTransactionsForDay(ctx, day)
	if err != nil {
		return nil, err
	}

	report := &DailyReport{
		Date:                 day.Format("2006-01-02"),
		Issues:               []Issue{},
		Batches:              []BatchReport{},
		UnmatchedDeposits:    unmatchedDeposits,
		UnlinkedTransactions: unlinkedTxs,
	}

	for i := range batches {
		batch := batches[i]
		deposit, err := a.store.DepositForBatch(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		txs, err := a.store.TransactionsForBatch(ctx, batch.ID)
		if err != nil {
			return nil, err
		}

		bpSum := decimal.Zero
		for _, tx := range txs {
			bpSum = bpSum.Add(tx.Amount)
		}
		bpDiff := batch.TotalAmount.Sub(bpSum)

		report.Batches = append(report.Batches, BatchReport{
			Batch:        batch,
			QBODeposit:   deposit,
			Transactions: txs,
			BPSum:        bpSum,
			BPDifference: bpDiff,
		})

		report.Summary.MSCTotal = report.Summary.MSCTotal.Add(batch.TotalAmount)
		report.Summary.BPTotal = report.Summary.BPTotal.Add(bpSum)
		if deposit != nil {
			report.Summary.QBOTotal = report.Summary.QBOTotal.Add(deposit.TotalAmount)
		}

		if bpDiff.Abs().GreaterThan(a.tolerance) {
			direction := "over"
			if bpDiff.IsPositive() {
				direction = "short"
			}
			report.Issues = append(report.Issues, Issue{
				Type:            IssueAmountMismatch,
				BatchExternalID: batch.ExternalID,
				Message: fmt.Sprintf("batch %s is %s by $%s against point-of-sale transactions",
					batch.ExternalID, direction, bpDiff.Abs().StringFixed(2)),
			})
		}
		if deposit != nil &&
			(deposit.CategoryStatus == models.CategoryStatusNeedsReview ||
				deposit.CategoryStatus == models.CategoryStatusFlagged) {
			report.Issues = append(report.Issues, Issue{
				Type:              IssueCategoryReview,
				BatchExternalID:   batch.ExternalID,
				DepositExternalID: deposit.ExternalID,
				Message:           fmt.Sprintf("deposit %s category needs review (%s)", deposit.ExternalID, deposit.CategoryStatus),
			})
		}
		if deposit == nil {
			report.Issues = append(report.Issues, Issue{
				Type:            IssueNoQBOMatch,
				BatchExternalID: batch.ExternalID,
				Message:         fmt.Sprintf("batch %s has no matched deposit", batch.ExternalID),
			})
		}
	}

	for _, d := range unmatchedDeposits {
		report.Summary.QBOTotal = report.Summary.QBOTotal.Add(d.TotalAmount)
		report.Issues = append(report.Issues, Issue{
			Type:              IssueUnmatchedDeposit,
			DepositExternalID: d.ExternalID,
			Message:           fmt.Sprintf("deposit %s ($%s) is not matched to any batch", d.ExternalID, d.TotalAmount.StringFixed(2)),
		})
	}
	for _, tx := range unlinkedTxs {
		report.Summary.BPTotal = report.Summary.BPTotal.Add(tx.Amount)
	}
	if len(unlinkedTxs) > 0 {
		report.Issues = append(report.Issues, Issue{
			Type:    IssueUnlinkedTransactions,
			Message: fmt.Sprintf("%d point-of-sale transactions are not linked to any batch", len(unlinkedTxs)),
		})
	}

	report.Status = dayStatus(report.Issues)
	return report, nil
}

func dayStatus(issues []Issue) string {
	hasPending := false
	for _, issue := range issues {
		if issue.Type == IssueNoQBOMatch {
			hasPending = true
			continue
		}
		return DayStatusIssues
	}
	if hasPending {
		return DayStatusPending
	}
	return DayStatusMatched
}
