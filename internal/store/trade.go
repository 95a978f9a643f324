package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/models"
)

// CreateTradeInfo inserts the application together with its documents.
func (s *Store) CreateTradeInfo(ctx context.Context, info *models.TradeInfo) error {
	return translate(s.conn(ctx).Create(info).Error)
}

func (s *Store) TradeInfoByAccount(ctx context.Context, accountID uuid.UUID) (*models.TradeInfo, error) {
	var info models.TradeInfo
	err := s.conn(ctx).Preload("Documents").Where("account_id = ?", accountID).First(&info).Error
	if err != nil {
		return nil, translate(err)
	}
	return &info, nil
}

// ResubmitTradeInfo replaces the business details and documents of a
// rejected application and puts it back to Pending. It reports false when
// the application was not in the Rejected state.
func (s *Store) ResubmitTradeInfo(ctx context.Context, info *models.TradeInfo) (bool, error) {
	var changed bool
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var current models.TradeInfo
		if err := s.conn(ctx).Where("account_id = ?", info.AccountID).First(&current).Error; err != nil {
			return translate(err)
		}

		res := s.conn(ctx).Model(&models.TradeInfo{}).
			Where("id = ? AND approval_status = ?", current.ID, models.ApprovalRejected).
			Updates(map[string]interface{}{
				"business_type":     info.BusinessType,
				"monthly_statement": info.MonthlyStatement,
				"procurement_no":    info.ProcurementNo,
				"approval_status":   models.ApprovalPending,
				"reviewed_by":       nil,
				"reviewed_at":       nil,
				"rejection_reason":  "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		if err := s.conn(ctx).Where("trade_info_id = ?", current.ID).Delete(&models.TradeDocument{}).Error; err != nil {
			return err
		}
		for i := range info.Documents {
			info.Documents[i].TradeInfoID = current.ID
		}
		if len(info.Documents) > 0 {
			if err := s.conn(ctx).Create(&info.Documents).Error; err != nil {
				return err
			}
		}

		info.ID = current.ID
		info.CreatedAt = current.CreatedAt
		info.ApprovalStatus = models.ApprovalPending
		info.ReviewedBy = nil
		info.ReviewedAt = nil
		info.RejectionReason = ""
		return nil
	})
	return changed, err
}

// SetTradeStatus is a compare-and-swap on the approval status.
func (s *Store) SetTradeStatus(ctx context.Context, accountID uuid.UUID, from, to models.ApprovalStatus, review models.TradeReview) (bool, error) {
	reviewer := review.ReviewerID
	reviewedAt := review.At
	res := s.conn(ctx).Model(&models.TradeInfo{}).
		Where("account_id = ? AND approval_status = ?", accountID, from).
		Updates(map[string]interface{}{
			"approval_status":  to,
			"reviewed_by":      &reviewer,
			"reviewed_at":      &reviewedAt,
			"rejection_reason": review.Reason,
		})
	return res.RowsAffected == 1, res.Error
}

// ListTradeInfos pages through applications, oldest first so reviewers
// work the queue in arrival order. An empty status lists all.
func (s *Store) ListTradeInfos(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.TradeInfo, int64, error) {
	query := s.conn(ctx).Model(&models.TradeInfo{})
	if status != "" {
		query = query.Where("approval_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var infos []models.TradeInfo
	q := s.conn(ctx).Preload("Documents").Order("created_at")
	if status != "" {
		q = q.Where("approval_status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&infos).Error; err != nil {
		return nil, 0, err
	}
	return infos, total, nil
}

func (s *Store) TradeDocument(ctx context.Context, id uuid.UUID) (*models.TradeDocument, error) {
	var doc models.TradeDocument
	if err := s.conn(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}
