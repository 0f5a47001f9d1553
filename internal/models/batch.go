package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch reconciliation statuses.
const (
	BatchStatusPending     = "PENDING"
	BatchStatusMatched     = "MATCHED"
	BatchStatusDiscrepancy = "DISCREPANCY"
)

// Batch is one merchant-services settlement batch, the source-of-truth
// total for a day of card settlement.
type Batch struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID  string          `gorm:"uniqueIndex" json:"external_id"`
	BatchDate   time.Time       `gorm:"index" json:"batch_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`

	// Status is PENDING iff no deposit links to this batch.
	Status       string     `gorm:"index;default:PENDING" json:"status"`
	ReconciledAt *time.Time `json:"reconciled_at"`

	// Discrepancy annotations are written by operators, never by the engine.
	DiscrepancyAmount   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"discrepancy_amount"`
	DiscrepancyNotes    string           `json:"discrepancy_notes"`
	DiscrepancyResolved bool             `json:"discrepancy_resolved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
