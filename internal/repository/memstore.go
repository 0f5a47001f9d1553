package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"deposit-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemStore is an in-memory Store with the same commit semantics as the
// gorm store. It backs the engine tests and is handy as a fixture store.
type MemStore struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]models.Batch
	deposits map[uuid.UUID]models.Deposit
	txs      map[uuid.UUID]models.Transaction
	audits   []models.MatchAuditLog
}

func NewMemStore() *MemStore {
	return &MemStore{
		batches:  make(map[uuid.UUID]models.Batch),
		deposits: make(map[uuid.UUID]models.Deposit),
		txs:      make(map[uuid.UUID]models.Transaction),
	}
}

func (s *MemStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemStore) GetBatchByExternalID(ctx context.Context, externalID string) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		if b.ExternalID == externalID {
			b := b
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemStore) PendingBatches(ctx context.Context) ([]models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Batch
	for _, b := range s.batches {
		if b.Status == models.BatchStatusPending {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BatchDate.Equal(out[j].BatchDate) {
			return out[i].BatchDate.Before(out[j].BatchDate)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

func (s *MemStore) UnlinkedDepositsInWindow(ctx context.Context, from, to time.Time) ([]models.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deposit
	for _, d := range s.deposits {
		if d.BatchID == nil && !d.DepositDate.Before(from) && d.DepositDate.Before(to) {
			out = append(out, d)
		}
	}
	sortDeposits(out)
	return out, nil
}

func sortDeposits(deposits []models.Deposit) {
	sort.Slice(deposits, func(i, j int) bool {
		if !deposits[i].DepositDate.Equal(deposits[j].DepositDate) {
			return deposits[i].DepositDate.Before(deposits[j].DepositDate)
		}
		return deposits[i].ExternalID < deposits[j].ExternalID
	})
}

func (s *MemStore) DepositForBatch(ctx context.Context, batchID uuid.UUID) (*models.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deposits {
		if d.BatchID != nil && *d.BatchID == batchID {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (s *MemStore) TransactionsForBatch(ctx context.Context, batchID uuid.UUID) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txs {
		if t.BatchID != nil && *t.BatchID == batchID {
			out = append(out, t)
		}
	}
	sortTransactions(out)
	return out, nil
}

func sortTransactions(txs []models.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].ExternalID < txs[j].ExternalID })
}

func (s *MemStore) BatchesForDay(ctx context.Context, day time.Time) ([]models.Batch, error) {
	start, end := DayBounds(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Batch
	for _, b := range s.batches {
		if !b.BatchDate.Before(start) && b.BatchDate.Before(end) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (s *MemStore) UnlinkedDepositsForDay(ctx context.Context, day time.Time) ([]models.Deposit, error) {
	start, end := DayBounds(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Deposit
	for _, d := range s.deposits {
		if d.BatchID == nil && !d.DepositDate.Before(start) && d.DepositDate.Before(end) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (s *MemStore) UnlinkedTransactionsForDay(ctx context.Context, day time.Time) ([]models.Transaction, error) {
	start, end := DayBounds(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txs {
		if t.BatchID == nil && !t.TransactionDate.Before(start) && t.TransactionDate.Before(end) {
			out = append(out, t)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *MemStore) UpsertBatch(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, b := range s.batches {
		if b.ExternalID == externalID {
			b.BatchDate = date
			b.TotalAmount = total
			b.UpdatedAt = now
			s.batches[id] = b
			return &b, nil
		}
	}
	b := models.Batch{
		ID:          uuid.New(),
		ExternalID:  externalID,
		BatchDate:   date,
		TotalAmount: total,
		Status:      models.BatchStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.batches[b.ID] = b
	return &b, nil
}

func (s *MemStore) UpsertDeposit(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, d := range s.deposits {
		if d.ExternalID == externalID {
			d.DepositDate = date
			d.TotalAmount = total
			d.UpdatedAt = now
			s.deposits[id] = d
			return &d, nil
		}
	}
	d := models.Deposit{
		ID:             uuid.New(),
		ExternalID:     externalID,
		DepositDate:    date,
		TotalAmount:    total,
		CategoryStatus: models.CategoryStatusUnchecked,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.deposits[d.ID] = d
	return &d, nil
}

func (s *MemStore) UpsertTransaction(ctx context.Context, externalID string, date time.Time, amount decimal.Decimal, description string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tx models.Transaction
	found := false
	for id, t := range s.txs {
		if t.ExternalID == externalID {
			t.TransactionDate = date
			t.Amount = amount
			t.Description = description
			s.txs[id] = t
			tx = t
			found = true
			break
		}
	}
	if !found {
		tx = models.Transaction{
			ID:              uuid.New(),
			ExternalID:      externalID,
			TransactionDate: date,
			Amount:          amount,
			Description:     description,
			CreatedAt:       time.Now(),
		}
	}
	if tx.BatchID == nil {
		start, end := DayBounds(date)
		var sameDay []models.Batch
		for _, b := range s.batches {
			if !b.BatchDate.Before(start) && b.BatchDate.Before(end) {
				sameDay = append(sameDay, b)
			}
		}
		sort.Slice(sameDay, func(i, j int) bool { return sameDay[i].ExternalID < sameDay[j].ExternalID })
		if len(sameDay) > 0 {
			id := sameDay[0].ID
			tx.BatchID = &id
		}
	}
	s.txs[tx.ID] = tx
	return &tx, nil
}

// SetDepositCategory stamps the categorization fields an external process
// would normally write. Test helper.
func (s *MemStore) SetDepositCategory(depositID uuid.UUID, category, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deposits[depositID]; ok {
		d.Category = category
		d.CategoryStatus = status
		s.deposits[depositID] = d
	}
}

func (s *MemStore) LinkBatchDeposit(ctx context.Context, commit LinkCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[commit.BatchID]
	if !ok {
		return ErrNotFound
	}
	dep, ok := s.deposits[commit.DepositID]
	if !ok {
		return ErrNotFound
	}
	if dep.BatchID != nil && *dep.BatchID != commit.BatchID {
		if !commit.Force {
			return ErrDepositLinked
		}
		if prev, ok := s.batches[*dep.BatchID]; ok {
			prev.Status = models.BatchStatusPending
			prev.ReconciledAt = nil
			s.batches[prev.ID] = prev
		}
	}

	// The batch keeps at most one deposit: any other deposit still
	// pointing at it is released in the same commit.
	for id, d := range s.deposits {
		if d.ID != commit.DepositID && d.BatchID != nil && *d.BatchID == commit.BatchID {
			d.BatchID = nil
			s.deposits[id] = d
		}
	}

	reconciledAt := commit.ReconciledAt
	batch.Status = commit.Status
	batch.ReconciledAt = &reconciledAt
	s.batches[batch.ID] = batch

	id := commit.BatchID
	dep.BatchID = &id
	s.deposits[dep.ID] = dep

	details, _ := json.Marshal(map[string]interface{}{
		"batch_external_id":   batch.ExternalID,
		"deposit_external_id": dep.ExternalID,
		"status":              commit.Status,
		"forced":              commit.Force,
	})
	depositID := commit.DepositID
	s.audits = append(s.audits, models.MatchAuditLog{
		ID:               uuid.New(),
		BatchID:          commit.BatchID,
		DepositID:        &depositID,
		Action:           commit.Action,
		AmountDifference: commit.AmountDifference,
		Details:          details,
		PerformedBy:      commit.PerformedBy,
		CreatedAt:        time.Now(),
	})
	return nil
}

func (s *MemStore) UnlinkBatch(ctx context.Context, batchID uuid.UUID, performedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return false, ErrNotFound
	}
	if batch.Status == models.BatchStatusPending {
		return false, nil
	}

	audit := models.MatchAuditLog{
		ID:          uuid.New(),
		BatchID:     batchID,
		Action:      models.AuditActionUnmatch,
		PerformedBy: performedBy,
		CreatedAt:   time.Now(),
	}
	for id, d := range s.deposits {
		if d.BatchID != nil && *d.BatchID == batchID {
			d.BatchID = nil
			s.deposits[id] = d
			depID := id
			audit.DepositID = &depID
		}
	}
	batch.Status = models.BatchStatusPending
	batch.ReconciledAt = nil
	s.batches[batchID] = batch
	s.audits = append(s.audits, audit)
	return true, nil
}

func (s *MemStore) BatchStats(ctx context.Context) ([]StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStatus := make(map[string]*StatusCount)
	for _, b := range s.batches {
		row, ok := byStatus[b.Status]
		if !ok {
			row = &StatusCount{Status: b.Status}
			byStatus[b.Status] = row
		}
		row.Count++
		row.Sum = row.Sum.Add(b.TotalAmount)
	}
	var out []StatusCount
	for _, row := range byStatus {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (s *MemStore) DeleteBatchCascade(ctx context.Context, batchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batchID]; !ok {
		return ErrNotFound
	}
	for id, d := range s.deposits {
		if d.BatchID != nil && *d.BatchID == batchID {
			d.BatchID = nil
			s.deposits[id] = d
		}
	}
	for id, t := range s.txs {
		if t.BatchID != nil && *t.BatchID == batchID {
			delete(s.txs, id)
		}
	}
	kept := s.audits[:0]
	for _, a := range s.audits {
		if a.BatchID != batchID {
			kept = append(kept, a)
		}
	}
	s.audits = kept
	delete(s.batches, batchID)
	return nil
}

// AuditLogs returns a snapshot of the audit rows. Test helper.
func (s *MemStore) AuditLogs() []models.MatchAuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MatchAuditLog, len(s.audits))
	copy(out, s.audits)
	return out
}
