package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"deposit-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedDay = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func linkPair(t *testing.T, store *MemStore, batchID, depositID uuid.UUID, force bool) error {
	t.Helper()
	return store.LinkBatchDeposit(context.Background(), LinkCommit{
		BatchID:          batchID,
		DepositID:        depositID,
		Status:           models.BatchStatusMatched,
		ReconciledAt:     time.Now(),
		Force:            force,
		Action:           models.AuditActionManualMatch,
		AmountDifference: decimal.Zero,
		PerformedBy:      "operator",
	})
}

func TestUpsertBatchDoesNotResurrectStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "DEP001", seedDay, amt("500.00"))
	require.NoError(t, err)
	require.NoError(t, linkPair(t, store, batch.ID, dep.ID, false))

	// Re-import with a corrected amount keeps the reconciled status.
	again, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("510.00"))
	require.NoError(t, err)
	assert.Equal(t, batch.ID, again.ID)
	assert.True(t, again.TotalAmount.Equal(amt("510.00")))
	assert.Equal(t, models.BatchStatusMatched, again.Status)
	assert.NotNil(t, again.ReconciledAt)
}

func TestLinkClaimRefusedWithoutForce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)
	second, err := store.UpsertBatch(ctx, "BATCH002", seedDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "DEP001", seedDay, amt("500.00"))
	require.NoError(t, err)

	require.NoError(t, linkPair(t, store, first.ID, dep.ID, false))

	// A second claim on the same deposit loses; only one link survives.
	err = linkPair(t, store, second.ID, dep.ID, false)
	assert.ErrorIs(t, err, ErrDepositLinked)

	got, err := store.GetDeposit(ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *got.BatchID)

	gotSecond, err := store.GetBatch(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusPending, gotSecond.Status)
}

func TestLinkCommitReleasesBatchPriorDeposit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)
	depA, err := store.UpsertDeposit(ctx, "DEP_A", seedDay, amt("500.00"))
	require.NoError(t, err)
	depB, err := store.UpsertDeposit(ctx, "DEP_B", seedDay, amt("499.00"))
	require.NoError(t, err)

	require.NoError(t, linkPair(t, store, batch.ID, depA.ID, false))
	require.NoError(t, linkPair(t, store, batch.ID, depB.ID, false))

	// At most one deposit may point at the batch after the second commit.
	gotA, err := store.GetDeposit(ctx, depA.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.BatchID)

	linked, err := store.DepositForBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, depB.ID, linked.ID)
}

func TestLinkCommitWritesAuditRow(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "DEP001", seedDay, amt("500.00"))
	require.NoError(t, err)
	require.NoError(t, linkPair(t, store, batch.ID, dep.ID, false))

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionManualMatch, logs[0].Action)
	assert.Equal(t, batch.ID, logs[0].BatchID)
	require.NotNil(t, logs[0].DepositID)
	assert.Equal(t, dep.ID, *logs[0].DepositID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, "BATCH001", details["batch_external_id"])
	assert.Equal(t, "DEP001", details["deposit_external_id"])
}

func TestUnlinkBatchNoOpWhenPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)

	changed, err := store.UnlinkBatch(ctx, batch.ID, "operator")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, store.AuditLogs())

	_, err = store.UnlinkBatch(ctx, uuid.New(), "operator")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBatchCascade(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)
	dep, err := store.UpsertDeposit(ctx, "DEP001", seedDay, amt("500.00"))
	require.NoError(t, err)
	require.NoError(t, linkPair(t, store, batch.ID, dep.ID, false))
	tx, err := store.UpsertTransaction(ctx, "TXN001", seedDay, amt("500.00"), "card sale")
	require.NoError(t, err)
	require.NotNil(t, tx.BatchID)

	require.NoError(t, store.DeleteBatchCascade(ctx, batch.ID))

	_, err = store.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The deposit survives, unlinked; transactions and audit rows go.
	got, err := store.GetDeposit(ctx, dep.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BatchID)

	txs, err := store.UnlinkedTransactionsForDay(ctx, seedDay)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Empty(t, store.AuditLogs())
}

func TestUpsertTransactionSameDayLink(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// No same-day batch yet: stays unlinked.
	tx, err := store.UpsertTransaction(ctx, "TXN001", seedDay, amt("100.00"), "card sale")
	require.NoError(t, err)
	assert.Nil(t, tx.BatchID)

	batch, err := store.UpsertBatch(ctx, "BATCH001", seedDay, amt("500.00"))
	require.NoError(t, err)

	// Re-import of the same row now finds the batch.
	tx, err = store.UpsertTransaction(ctx, "TXN001", seedDay, amt("100.00"), "card sale")
	require.NoError(t, err)
	require.NotNil(t, tx.BatchID)
	assert.Equal(t, batch.ID, *tx.BatchID)

	// A transaction on another day never attaches to it.
	other, err := store.UpsertTransaction(ctx, "TXN002", seedDay.AddDate(0, 0, 1), amt("100.00"), "card sale")
	require.NoError(t, err)
	assert.Nil(t, other.BatchID)
}

func TestUnlinkedDepositsInWindowBounds(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.UpsertDeposit(ctx, "DEP_IN", seedDay, amt("100.00"))
	require.NoError(t, err)
	_, err = store.UpsertDeposit(ctx, "DEP_EDGE", seedDay.AddDate(0, 0, 1), amt("100.00"))
	require.NoError(t, err)
	_, err = store.UpsertDeposit(ctx, "DEP_OUT", seedDay.AddDate(0, 0, 2), amt("100.00"))
	require.NoError(t, err)

	from := seedDay.AddDate(0, 0, -1)
	to := seedDay.AddDate(0, 0, 2)
	deposits, err := store.UnlinkedDepositsInWindow(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, "DEP_IN", deposits[0].ExternalID)
	assert.Equal(t, "DEP_EDGE", deposits[1].ExternalID)
}
