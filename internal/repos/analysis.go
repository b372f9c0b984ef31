package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

// Column budgets for free-text fields. Values over budget are truncated
// with a visible marker instead of failing the row.
const (
	maxChatNameLen    = 255
	maxCategoryLen    = 100
	maxInterestLen    = 500
	maxSummaryLen     = 2000
	maxActionLen      = 1000
	TruncationMarker  = "… [truncated]"
)

// ErrConsecutiveFailures aborts a bulk upsert whose single-row fallback
// keeps failing, so a systemic fault is not misreported as N row faults.
var ErrConsecutiveFailures = errors.New("too many consecutive row failures")

// ItemError records one defective row from the single-row fallback pass.
type ItemError struct {
	ChatJID string
	Err     error
}

// BulkUpsertResult reports the per-call outcome of BulkUpsert.
type BulkUpsertResult struct {
	Succeeded     int
	Failed        int
	PerItemErrors []ItemError
}

// ReportRow is one bucket of the aggregate sales report.
type ReportRow struct {
	Value string
	Count int64
}

// AggregateReport summarizes every persisted analysis for the report
// command.
type AggregateReport struct {
	Total          int64
	QualifiedLeads int64
	NeedsFollowup  int64
	AvgConfidence  float64
	ByLeadStage    []ReportRow
	BySentiment    []ReportRow
	ByUrgency      []ReportRow
}

// AnalysisRepo owns the conversation_analysis table.
type AnalysisRepo interface {
	// BulkUpsert writes rows atomically (all-or-nothing transaction,
	// last-write-wins on conflict). If the transaction fails it falls
	// back to one-row-at-a-time upserts to isolate defective rows.
	BulkUpsert(ctx context.Context, tx *gorm.DB, rows []*types.ConversationAnalysis) (*BulkUpsertResult, error)
	GetByChatJID(ctx context.Context, tx *gorm.DB, chatJID string) (*types.ConversationAnalysis, error)
	Aggregate(ctx context.Context, tx *gorm.DB) (*AggregateReport, error)
}

type analysisRepo struct {
	db                 *gorm.DB
	log                *logger.Logger
	maxConsecutiveErrs int
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger, maxConsecutiveErrs int) AnalysisRepo {
	repoLog := baseLog.With("repo", "AnalysisRepo")
	if maxConsecutiveErrs < 1 {
		maxConsecutiveErrs = 5
	}
	return &analysisRepo{db: db, log: repoLog, maxConsecutiveErrs: maxConsecutiveErrs}
}

func (r *analysisRepo) BulkUpsert(ctx context.Context, tx *gorm.DB, rows []*types.ConversationAnalysis) (*BulkUpsertResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	result := &BulkUpsertResult{}
	if len(rows) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	for _, row := range rows {
		normalizeRow(row, now)
	}

	if err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		return upsert(inner, rows)
	}); err == nil {
		result.Succeeded = len(rows)
		return result, nil
	} else {
		r.log.Warn("Bulk upsert transaction failed, isolating rows", "rows", len(rows), "error", err)
	}

	// Fallback pass: each row in its own statement so one bad row cannot
	// sink its neighbors.
	consecutive := 0
	for i, row := range rows {
		if err := upsert(transaction.WithContext(ctx), rows[i:i+1]); err != nil {
			result.Failed++
			result.PerItemErrors = append(result.PerItemErrors, ItemError{ChatJID: row.ChatJID, Err: err})
			r.log.Warn("Row upsert failed", "chat_jid", row.ChatJID, "error", err)
			consecutive++
			if consecutive >= r.maxConsecutiveErrs {
				for _, rest := range rows[i+1:] {
					result.Failed++
					result.PerItemErrors = append(result.PerItemErrors, ItemError{
						ChatJID: rest.ChatJID,
						Err:     fmt.Errorf("skipped: %w", ErrConsecutiveFailures),
					})
				}
				return result, fmt.Errorf("%w after %d rows", ErrConsecutiveFailures, consecutive)
			}
			continue
		}
		consecutive = 0
		result.Succeeded++
	}
	return result, nil
}

func (r *analysisRepo) GetByChatJID(ctx context.Context, tx *gorm.DB, chatJID string) (*types.ConversationAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ConversationAnalysis
	if err := transaction.WithContext(ctx).
		Where("chat_jid = ?", chatJID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *analysisRepo) Aggregate(ctx context.Context, tx *gorm.DB) (*AggregateReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	db := transaction.WithContext(ctx).Model(&types.ConversationAnalysis{})

	report := &AggregateReport{}
	if err := db.Session(&gorm.Session{}).Count(&report.Total).Error; err != nil {
		return nil, err
	}
	if report.Total == 0 {
		return report, nil
	}
	if err := db.Session(&gorm.Session{}).Where("is_qualified_lead = ?", true).Count(&report.QualifiedLeads).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("needs_followup = ?", true).Count(&report.NeedsFollowup).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Select("AVG(confidence)").Scan(&report.AvgConfidence).Error; err != nil {
		return nil, err
	}

	var err error
	if report.ByLeadStage, err = groupCount(db, "lead_stage"); err != nil {
		return nil, err
	}
	if report.BySentiment, err = groupCount(db, "sentiment"); err != nil {
		return nil, err
	}
	if report.ByUrgency, err = groupCount(db, "urgency"); err != nil {
		return nil, err
	}
	return report, nil
}

func groupCount(db *gorm.DB, column string) ([]ReportRow, error) {
	var rows []ReportRow
	if err := db.Session(&gorm.Session{}).
		Select(column + " AS value, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func upsert(db *gorm.DB, rows []*types.ConversationAnalysis) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_jid"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// normalizeRow enforces column budgets and refreshes the last-modified
// timestamp before write.
func normalizeRow(row *types.ConversationAnalysis, now time.Time) {
	row.ChatName = Truncate(row.ChatName, maxChatNameLen)
	row.ProductCategory = Truncate(row.ProductCategory, maxCategoryLen)
	row.ProductInterest = Truncate(row.ProductInterest, maxInterestLen)
	row.Summary = Truncate(row.Summary, maxSummaryLen)
	row.RecommendedAction = Truncate(row.RecommendedAction, maxActionLen)
	if len(row.Objections) == 0 {
		row.Objections = types.EmptyList()
	}
	if len(row.BuyingSignals) == 0 {
		row.BuyingSignals = types.EmptyList()
	}
	if len(row.NextSteps) == 0 {
		row.NextSteps = types.EmptyList()
	}
	if row.AnalyzedAt.IsZero() {
		row.AnalyzedAt = now
	}
	row.UpdatedAt = now
}

// Truncate bounds s to max runes, replacing the tail with a visible marker
// when it overflows.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	marker := []rune(TruncationMarker)
	if max <= len(marker) {
		return string(marker[:max])
	}
	return string(runes[:max-len(marker)]) + TruncationMarker
}
