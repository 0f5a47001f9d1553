package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Audit actions recorded for every link mutation.
const (
	AuditActionAutoMatch   = "auto_match"
	AuditActionManualMatch = "manual_match"
	AuditActionUnmatch     = "unmatch"
)

// MatchAuditLog records one link or unlink of a batch. Rows are written in
// the same commit as the mutation they describe and are removed when the
// batch is deleted.
type MatchAuditLog struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BatchID          uuid.UUID       `gorm:"index"`
	DepositID        *uuid.UUID      `gorm:"index"`
	Action           string          `gorm:"index"`
	AmountDifference decimal.Decimal `gorm:"type:decimal(12,2)"`
	Details          datatypes.JSON
	PerformedBy      string
	CreatedAt        time.Time
}
