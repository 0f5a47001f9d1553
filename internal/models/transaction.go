package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one point-of-sale line item expected to roll up into a
// batch. The import process links it to a same-day batch when one exists;
// it may stay unlinked indefinitely.
type Transaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID      string          `gorm:"uniqueIndex" json:"external_id"`
	TransactionDate time.Time       `gorm:"index" json:"transaction_date"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Description     string          `json:"description"`

	BatchID *uuid.UUID `gorm:"index" json:"batch_id"`

	CreatedAt time.Time `json:"created_at"`
}
