package reports

import (
	"context"
	"testing"
	"time"

	"deposit-reconciliation-backend/internal/models"
	"deposit-reconciliation-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportDay = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAggregator(store repository.Store) *Aggregator {
	return New(store, amt("0.01"))
}

func link(t *testing.T, store *repository.MemStore, batch *models.Batch, dep *models.Deposit) {
	t.Helper()
	diff := dep.TotalAmount.Sub(batch.TotalAmount).Abs()
	status := models.BatchStatusDiscrepancy
	if diff.IsZero() {
		status = models.BatchStatusMatched
	}
	err := store.LinkBatchDeposit(context.Background(), repository.LinkCommit{
		BatchID:          batch.ID,
		DepositID:        dep.ID,
		Status:           status,
		ReconciledAt:     time.Now(),
		Action:           models.AuditActionAutoMatch,
		AmountDifference: diff,
		PerformedBy:      "auto-match",
	})
	require.NoError(t, err)
}

func issueTypes(report *DailyReport) []string {
	var types []string
	for _, issue := range report.Issues {
		types = append(types, issue.Type)
	}
	return types
}

func TestDailyReportCleanDay(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemStore()
	batch, err := store.UpsertBatch(ctx, "MSC001", reportDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "QBO001", reportDay, amt("500.00"))
	require.NoError(t, err)
	link(t, store, batch, dep)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("200.00"), "card sale")
	require.NoError(t, err)
	_, err = store.UpsertTransaction(ctx, "TXNB", reportDay, amt("300.00"), "card sale")
	require.NoError(t, err)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)

	assert.Equal(t, DayStatusMatched, report.Status)
	assert.Empty(t, report.Issues)
	require.Len(t, report.Batches, 1)
	assert.True(t, report.Batches[0].BPSum.Equal(amt("500.00")))
	assert.True(t, report.Batches[0].BPDifference.IsZero())
	assert.True(t, report.Summary.QBOTotal.Equal(amt("500.00")))
	assert.True(t, report.Summary.MSCTotal.Equal(amt("500.00")))
	assert.True(t, report.Summary.BPTotal.Equal(amt("500.00")))
}

func TestDailyReportPendingWhenOnlyUnmatchedBatch(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemStore()
	_, err := store.UpsertBatch(ctx, "MSC001", reportDay, amt("500.00"))
	require.NoError(t, err)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("500.00"), "card sale")
	require.NoError(t, err)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)

	assert.Equal(t, DayStatusPending, report.Status)
	assert.Equal(t, []string{IssueNoQBOMatch}, issueTypes(report))
}

func TestDailyReportSignedDifference(t *testing.T) {
	ctx := context.Background()

	// Batch short of point-of-sale coverage: positive difference.
	store := repository.NewMemStore()
	_, err := store.UpsertBatch(ctx, "MSC001", reportDay, amt("100.00"))
	require.NoError(t, err)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("90.00"), "card sale")
	require.NoError(t, err)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)
	assert.Equal(t, DayStatusIssues, report.Status)
	assert.True(t, report.Batches[0].BPDifference.Equal(amt("10.00")))
	require.Contains(t, issueTypes(report), IssueAmountMismatch)
	assert.Contains(t, report.Issues[0].Message, "short by $10.00")

	// Over-covered batch: negative difference, same absolute amount.
	store = repository.NewMemStore()
	_, err = store.UpsertBatch(ctx, "MSC001", reportDay, amt("100.00"))
	require.NoError(t, err)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("110.00"), "card sale")
	require.NoError(t, err)

	report, err = newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)
	assert.True(t, report.Batches[0].BPDifference.Equal(amt("-10.00")))
	assert.Contains(t, report.Issues[0].Message, "over by $10.00")
}

func TestDailyReportCategoryReview(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemStore()
	batch, err := store.UpsertBatch(ctx, "MSC001", reportDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "QBO001", reportDay, amt("500.00"))
	require.NoError(t, err)
	link(t, store, batch, dep)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("500.00"), "card sale")
	require.NoError(t, err)
	store.SetDepositCategory(dep.ID, "Merchant Deposits", models.CategoryStatusFlagged)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)

	assert.Equal(t, DayStatusIssues, report.Status)
	assert.Equal(t, []string{IssueCategoryReview}, issueTypes(report))
	assert.Equal(t, "QBO001", report.Issues[0].DepositExternalID)
}

func TestDailyReportDivergentTotals(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemStore()

	// Imported before any batch exists, so it stays unlinked.
	_, err := store.UpsertTransaction(ctx, "TXN_STRAY", reportDay, amt("25.00"), "card sale")
	require.NoError(t, err)

	batch, err := store.UpsertBatch(ctx, "MSC001", reportDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "QBO001", reportDay, amt("499.00"))
	require.NoError(t, err)
	link(t, store, batch, dep)
	_, err = store.UpsertTransaction(ctx, "TXNA", reportDay, amt("480.00"), "card sale")
	require.NoError(t, err)

	// A deposit of the day no batch claimed.
	_, err = store.UpsertDeposit(ctx, "QBO_STRAY", reportDay, amt("50.00"))
	require.NoError(t, err)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)

	assert.Equal(t, DayStatusIssues, report.Status)
	types := issueTypes(report)
	assert.Contains(t, types, IssueAmountMismatch)
	assert.Contains(t, types, IssueUnmatchedDeposit)
	assert.Contains(t, types, IssueUnlinkedTransactions)

	// The three totals come from disjoint entity sets.
	assert.True(t, report.Summary.QBOTotal.Equal(amt("549.00")), "qbo total %s", report.Summary.QBOTotal)
	assert.True(t, report.Summary.MSCTotal.Equal(amt("500.00")), "msc total %s", report.Summary.MSCTotal)
	assert.True(t, report.Summary.BPTotal.Equal(amt("505.00")), "bp total %s", report.Summary.BPTotal)

	require.Len(t, report.UnmatchedDeposits, 1)
	assert.Equal(t, "QBO_STRAY", report.UnmatchedDeposits[0].ExternalID)
	require.Len(t, report.UnlinkedTransactions, 1)
	assert.Equal(t, "TXN_STRAY", report.UnlinkedTransactions[0].ExternalID)
}

func TestDailyReportIgnoresOtherDays(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemStore()
	_, err := store.UpsertBatch(ctx, "MSC001", reportDay.AddDate(0, 0, -1), amt("500.00"))
	require.NoError(t, err)
	_, err = store.UpsertDeposit(ctx, "QBO001", reportDay.AddDate(0, 0, 1), amt("500.00"))
	require.NoError(t, err)

	report, err := newAggregator(store).DailyReport(ctx, reportDay)
	require.NoError(t, err)
	assert.Empty(t, report.Batches)
	assert.Empty(t, report.UnmatchedDeposits)
	assert.Equal(t, DayStatusMatched, report.Status)
}
