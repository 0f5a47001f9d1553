package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit category review statuses, set by the external categorization
// process. Read-only to the matching engine.
const (
	CategoryStatusUnchecked   = "UNCHECKED"
	CategoryStatusCorrect     = "CORRECT"
	CategoryStatusNeedsReview = "NEEDS_REVIEW"
	CategoryStatusFlagged     = "FLAGGED"
)

// Deposit is one bank deposit row synced from the accounting platform.
// BatchID is the single source of truth for the batch link; Batch carries
// no foreign key of its own.
type Deposit struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID  string          `gorm:"uniqueIndex" json:"external_id"`
	DepositDate time.Time       `gorm:"index" json:"deposit_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`

	BatchID *uuid.UUID `gorm:"index" json:"batch_id"`

	Category         string `json:"category"`
	ExpectedCategory string `json:"expected_category"`
	CategoryStatus   string `gorm:"default:UNCHECKED" json:"category_status"`
	CategoryNotes    string `json:"category_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
