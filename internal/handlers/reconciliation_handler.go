package handler

import (
	"errors"
	"net/http"
	"time"

	"deposit-reconciliation-backend/internal/repository"
	"deposit-reconciliation-backend/internal/services/matching"
	"deposit-reconciliation-backend/internal/services/reports"
	"deposit-reconciliation-backend/internal/services/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReconciliationHandler struct {
	store      repository.Store
	matcher    *matching.Matcher
	validator  *validation.Validator
	aggregator *reports.Aggregator
}

func NewReconciliationHandler(
	store repository.Store,
	matcher *matching.Matcher,
	validator *validation.Validator,
	aggregator *reports.Aggregator,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		store:      store,
		matcher:    matcher,
		validator:  validator,
		aggregator: aggregator,
	}
}

func (h *ReconciliationHandler) AutoMatch(c *gin.Context) {
	var payload struct {
		Tolerance *string `json:"tolerance"`
	}
	// An empty body is fine; the configured tolerance applies.
	_ = c.ShouldBindJSON(&payload)

	var result *matching.RunResult
	var err error
	if payload.Tolerance != nil {
		tolerance, parseErr := decimal.NewFromString(*payload.Tolerance)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tolerance"})
			return
		}
		result, err = h.matcher.AutoMatchWithTolerance(c.Request.Context(), tolerance)
	} else {
		result, err = h.matcher.AutoMatch(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	var payload struct {
		BatchID   string `json:"batch_id"`
		DepositID string `json:"deposit_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.BatchID == "" || payload.DepositID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_id and deposit_id are required"})
		return
	}
	batchID, err := uuid.Parse(payload.BatchID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	depositID, err := uuid.Parse(payload.DepositID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deposit ID"})
		return
	}

	outcome, err := h.matcher.ManualMatch(c.Request.Context(), batchID, depositID)
	if err != nil {
		h.renderMatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "batch matched", "result": outcome})
}

func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	var payload struct {
		BatchID string `json:"batch_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	batchID, err := uuid.Parse(payload.BatchID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	if err := h.matcher.Unmatch(c.Request.Context(), batchID); err != nil {
		h.renderMatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "batch unmatched"})
}

func (h *ReconciliationHandler) Stats(c *gin.Context) {
	stats, err := h.matcher.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReconciliationHandler) DailyReport(c *gin.Context) {
	day, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	report, err := h.aggregator.DailyReport(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReconciliationHandler) ValidateBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	result, err := h.validator.Validate(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, validation.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReconciliationHandler) DeleteBatch(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	if err := h.store.DeleteBatchCascade(c.Request.Context(), batchID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "batch deleted"})
}

// Import/sync glue: the external import and deposit-sync collaborators call
// these upserts.

func (h *ReconciliationHandler) UpsertBatch(c *gin.Context) {
	var payload struct {
		ExternalID string `json:"external_id"`
		BatchDate  string `json:"batch_date"`
		Total      string `json:"total_amount"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, total, ok := h.parseDateAmount(c, payload.ExternalID, payload.BatchDate, payload.Total)
	if !ok {
		return
	}
	batch, err := h.store.UpsertBatch(c.Request.Context(), payload.ExternalID, date, total)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

func (h *ReconciliationHandler) UpsertDeposit(c *gin.Context) {
	var payload struct {
		ExternalID  string `json:"external_id"`
		DepositDate string `json:"deposit_date"`
		Total       string `json:"total_amount"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, total, ok := h.parseDateAmount(c, payload.ExternalID, payload.DepositDate, payload.Total)
	if !ok {
		return
	}
	dep, err := h.store.UpsertDeposit(c.Request.Context(), payload.ExternalID, date, total)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposit": dep})
}

func (h *ReconciliationHandler) UpsertTransaction(c *gin.Context) {
	var payload struct {
		ExternalID      string `json:"external_id"`
		TransactionDate string `json:"transaction_date"`
		Amount          string `json:"amount"`
		Description     string `json:"description"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, amount, ok := h.parseDateAmount(c, payload.ExternalID, payload.TransactionDate, payload.Amount)
	if !ok {
		return
	}
	tx, err := h.store.UpsertTransaction(c.Request.Context(), payload.ExternalID, date, amount, payload.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *ReconciliationHandler) parseDateAmount(c *gin.Context, externalID, dateStr, amountStr string) (time.Time, decimal.Decimal, bool) {
	if externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_id is required"})
		return time.Time{}, decimal.Zero, false
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		date, err = time.Parse(time.RFC3339, dateStr)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return time.Time{}, decimal.Zero, false
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return time.Time{}, decimal.Zero, false
	}
	return date, amount, true
}

func (h *ReconciliationHandler) renderMatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, matching.ErrBatchNotFound), errors.Is(err, matching.ErrDepositNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
