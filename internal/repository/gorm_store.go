package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"deposit-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection in the Store interface.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *gormStore) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	if err := s.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (s *gormStore) GetBatchByExternalID(ctx context.Context, externalID string) (*models.Batch, error) {
	var batch models.Batch
	if err := s.db.WithContext(ctx).First(&batch, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (s *gormStore) GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	var dep models.Deposit
	if err := s.db.WithContext(ctx).First(&dep, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &dep, nil
}

func (s *gormStore) PendingBatches(ctx context.Context) ([]models.Batch, error) {
	var batches []models.Batch
	err := s.db.WithContext(ctx).
		Where("status = ?", models.BatchStatusPending).
		Order("batch_date ASC, external_id ASC").
		Find(&batches).Error
	return batches, err
}

func (s *gormStore) UnlinkedDepositsInWindow(ctx context.Context, from, to time.Time) ([]models.Deposit, error) {
	var deposits []models.Deposit
	err := s.db.WithContext(ctx).
		Where("batch_id IS NULL AND deposit_date >= ? AND deposit_date < ?", from, to).
		Order("deposit_date ASC, external_id ASC").
		Find(&deposits).Error
	return deposits, err
}

func (s *gormStore) DepositForBatch(ctx context.Context, batchID uuid.UUID) (*models.Deposit, error) {
	var deposits []models.Deposit
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Limit(1).Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	if len(deposits) == 0 {
		return nil, nil
	}
	return &deposits[0], nil
}

func (s *gormStore) TransactionsForBatch(ctx context.Context, batchID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("external_id ASC").
		Find(&txs).Error
	return txs, err
}

func (s *gormStore) BatchesForDay(ctx context.Context, day time.Time) ([]models.Batch, error) {
	start, end := DayBounds(day)
	var batches []models.Batch
	err := s.db.WithContext(ctx).
		Where("batch_date >= ? AND batch_date < ?", start, end).
		Order("external_id ASC").
		Find(&batches).Error
	return batches, err
}

func (s *gormStore) UnlinkedDepositsForDay(ctx context.Context, day time.Time) ([]models.Deposit, error) {
	start, end := DayBounds(day)
	var deposits []models.Deposit
	err := s.db.WithContext(ctx).
		Where("batch_id IS NULL AND deposit_date >= ? AND deposit_date < ?", start, end).
		Order("external_id ASC").
		Find(&deposits).Error
	return deposits, err
}

func (s *gormStore) UnlinkedTransactionsForDay(ctx context.Context, day time.Time) ([]models.Transaction, error) {
	start, end := DayBounds(day)
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("batch_id IS NULL AND transaction_date >= ? AND transaction_date < ?", start, end).
		Order("external_id ASC").
		Find(&txs).Error
	return txs, err
}

func (s *gormStore) UpsertBatch(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Batch, error) {
	batch := &models.Batch{
		ID:          uuid.New(),
		ExternalID:  externalID,
		BatchDate:   date,
		TotalAmount: total,
		Status:      models.BatchStatusPending,
	}
	// On re-import only date and amount move; status, reconciledAt and the
	// operator discrepancy fields survive.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"batch_date", "total_amount", "updated_at"}),
	}).Create(batch).Error
	if err != nil {
		return nil, err
	}
	return s.GetBatchByExternalID(ctx, externalID)
}

func (s *gormStore) UpsertDeposit(ctx context.Context, externalID string, date time.Time, total decimal.Decimal) (*models.Deposit, error) {
	dep := &models.Deposit{
		ID:             uuid.New(),
		ExternalID:     externalID,
		DepositDate:    date,
		TotalAmount:    total,
		CategoryStatus: models.CategoryStatusUnchecked,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"deposit_date", "total_amount", "updated_at"}),
	}).Create(dep).Error
	if err != nil {
		return nil, err
	}
	var out models.Deposit
	if err := s.db.WithContext(ctx).First(&out, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (s *gormStore) UpsertTransaction(ctx context.Context, externalID string, date time.Time, amount decimal.Decimal, description string) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:              uuid.New(),
		ExternalID:      externalID,
		TransactionDate: date,
		Amount:          amount,
		Description:     description,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"transaction_date", "amount", "description"}),
	}).Create(tx).Error
	if err != nil {
		return nil, err
	}
	var out models.Transaction
	if err := s.db.WithContext(ctx).First(&out, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err)
	}
	// Same-day heuristic: attach to a batch dated on the transaction's
	// calendar day, when one exists.
	if out.BatchID == nil {
		start, end := DayBounds(out.TransactionDate)
		var batches []models.Batch
		err := s.db.WithContext(ctx).
			Where("batch_date >= ? AND batch_date < ?", start, end).
			Order("external_id ASC").
			Limit(1).
			Find(&batches).Error
		if err != nil {
			return nil, err
		}
		if len(batches) > 0 {
			id := batches[0].ID
			if err := s.db.WithContext(ctx).Model(&out).Update("batch_id", id).Error; err != nil {
				return nil, err
			}
			out.BatchID = &id
		}
	}
	return &out, nil
}

func (s *gormStore) LinkBatchDeposit(ctx context.Context, commit LinkCommit) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.Batch
		if err := tx.First(&batch, "id = ?", commit.BatchID).Error; err != nil {
			return translate(err)
		}
		var dep models.Deposit
		if err := tx.First(&dep, "id = ?", commit.DepositID).Error; err != nil {
			return translate(err)
		}

		// The batch keeps at most one deposit: any other deposit still
		// pointing at it is released in the same commit.
		err := tx.Model(&models.Deposit{}).
			Where("batch_id = ? AND id <> ?", commit.BatchID, commit.DepositID).
			Update("batch_id", nil).Error
		if err != nil {
			return err
		}

		// Optimistic claim: the link is written only if the deposit is
		// still unlinked (or already ours). Losing the claim to a
		// concurrent run fails the whole commit.
		res := tx.Model(&models.Deposit{}).
			Where("id = ? AND (batch_id IS NULL OR batch_id = ?)", commit.DepositID, commit.BatchID).
			Update("batch_id", commit.BatchID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if !commit.Force {
				return ErrDepositLinked
			}
			// Manual relink steals the deposit; its previous batch goes
			// back to PENDING so the status<->link invariant holds.
			if dep.BatchID != nil {
				err := tx.Model(&models.Batch{}).
					Where("id = ?", *dep.BatchID).
					Updates(map[string]interface{}{
						"status":        models.BatchStatusPending,
						"reconciled_at": nil,
					}).Error
				if err != nil {
					return err
				}
			}
			err := tx.Model(&models.Deposit{}).
				Where("id = ?", commit.DepositID).
				Update("batch_id", commit.BatchID).Error
			if err != nil {
				return err
			}
		}

		err = tx.Model(&models.Batch{}).
			Where("id = ?", commit.BatchID).
			Updates(map[string]interface{}{
				"status":        commit.Status,
				"reconciled_at": commit.ReconciledAt,
			}).Error
		if err != nil {
			return err
		}

		details, _ := json.Marshal(map[string]interface{}{
			"batch_external_id":   batch.ExternalID,
			"deposit_external_id": dep.ExternalID,
			"status":              commit.Status,
			"forced":              commit.Force,
		})
		depositID := commit.DepositID
		return tx.Create(&models.MatchAuditLog{
			ID:               uuid.New(),
			BatchID:          commit.BatchID,
			DepositID:        &depositID,
			Action:           commit.Action,
			AmountDifference: commit.AmountDifference,
			Details:          details,
			PerformedBy:      commit.PerformedBy,
			CreatedAt:        time.Now(),
		}).Error
	})
}

func (s *gormStore) UnlinkBatch(ctx context.Context, batchID uuid.UUID, performedBy string) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.Batch
		if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
			return translate(err)
		}
		if batch.Status == models.BatchStatusPending {
			return nil
		}

		var linked []models.Deposit
		if err := tx.Where("batch_id = ?", batchID).Find(&linked).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Deposit{}).
			Where("batch_id = ?", batchID).
			Update("batch_id", nil).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Batch{}).
			Where("id = ?", batchID).
			Updates(map[string]interface{}{
				"status":        models.BatchStatusPending,
				"reconciled_at": nil,
			}).Error
		if err != nil {
			return err
		}

		audit := &models.MatchAuditLog{
			ID:          uuid.New(),
			BatchID:     batchID,
			Action:      models.AuditActionUnmatch,
			PerformedBy: performedBy,
			CreatedAt:   time.Now(),
		}
		if len(linked) > 0 {
			id := linked[0].ID
			audit.DepositID = &id
		}
		if err := tx.Create(audit).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (s *gormStore) BatchStats(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := s.db.WithContext(ctx).Model(&models.Batch{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(total_amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (s *gormStore) DeleteBatchCascade(ctx context.Context, batchID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.Batch
		if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
			return translate(err)
		}
		err := tx.Model(&models.Deposit{}).
			Where("batch_id = ?", batchID).
			Update("batch_id", nil).Error
		if err != nil {
			return err
		}
		if err := tx.Where("batch_id = ?", batchID).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("batch_id = ?", batchID).Delete(&models.MatchAuditLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Batch{}, "id = ?", batchID).Error
	})
}
