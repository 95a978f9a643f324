package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/metrics"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/store"
)

// TradeApprover is the admin-only capability to decide trade applications.
type TradeApprover interface {
	Approve(ctx context.Context, accountID, reviewerID uuid.UUID) (*models.TradeInfo, error)
	Reject(ctx context.Context, accountID, reviewerID uuid.UUID, reason string) (*models.TradeInfo, error)
}

type tradeGateStore interface {
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	TradeStore
}

// TradeGate holds the Pending -> Approved | Rejected state machine of trade
// applications.
type TradeGate struct {
	store    tradeGateStore
	blobs    BlobStore
	notifier Notifier
	now      Clock
}

var _ TradeApprover = (*TradeGate)(nil)

func NewTradeGate(st tradeGateStore, blobs BlobStore, notifier Notifier, clock Clock) *TradeGate {
	if clock == nil {
		clock = SystemClock
	}
	return &TradeGate{store: st, blobs: blobs, notifier: notifier, now: clock}
}

func (g *TradeGate) Approve(ctx context.Context, accountID, reviewerID uuid.UUID) (*models.TradeInfo, error) {
	return g.decide(ctx, accountID, reviewerID, models.ApprovalApproved, "")
}

func (g *TradeGate) Reject(ctx context.Context, accountID, reviewerID uuid.UUID, reason string) (*models.TradeInfo, error) {
	return g.decide(ctx, accountID, reviewerID, models.ApprovalRejected, strings.TrimSpace(reason))
}

func (g *TradeGate) decide(ctx context.Context, accountID, reviewerID uuid.UUID, to models.ApprovalStatus, reason string) (*models.TradeInfo, error) {
	reviewer, err := g.store.AccountByID(ctx, reviewerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if reviewer == nil || !reviewer.IsStaff || !reviewer.IsActive {
		return nil, apperr.New(apperr.KindForbidden, "Only staff can review trade applications.")
	}

	account, err := g.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Customer not found")
		}
		return nil, err
	}
	if account.CustomerType != models.CustomerTrade {
		return nil, apperr.New(apperr.KindNotTradeAccount, "Customer is not a Trade account.")
	}

	review := models.TradeReview{ReviewerID: reviewerID, At: g.now(), Reason: reason}
	swapped, err := g.store.SetTradeStatus(ctx, accountID, models.ApprovalPending, to, review)
	if err != nil {
		return nil, err
	}

	info, err := g.store.TradeInfoByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Trade application not found")
		}
		return nil, err
	}
	if !swapped {
		return nil, apperr.New(apperr.KindInvalidTransition, "Only pending applications can be reviewed.").
			With("status", string(info.ApprovalStatus))
	}

	metrics.TradeDecisions.WithLabelValues(strings.ToLower(string(to))).Inc()
	logger.Log.Info("trade application reviewed",
		"account_id", accountID,
		"reviewer_id", reviewerID,
		"decision", to,
	)

	templateID := TemplateTradeApproved
	if to == models.ApprovalRejected {
		templateID = TemplateTradeRejected
	}
	sendNotification(ctx, g.notifier, templateID, account.Email, map[string]any{
		"first_name": account.FirstName,
		"reason":     reason,
	})
	return info, nil
}

// Status returns the application of a Trade account.
func (g *TradeGate) Status(ctx context.Context, accountID uuid.UUID) (*models.TradeInfo, error) {
	info, err := g.store.TradeInfoByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Trade application not found")
		}
		return nil, err
	}
	return info, nil
}

// Applications lists applications, optionally filtered by status.
func (g *TradeGate) Applications(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.TradeInfo, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.New(apperr.KindValidation, "Unknown approval status.")
	}
	return g.store.ListTradeInfos(ctx, status, limit, offset)
}

// Document returns a stored supporting document and its content.
func (g *TradeGate) Document(ctx context.Context, documentID uuid.UUID) (*models.TradeDocument, []byte, error) {
	doc, err := g.store.TradeDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.New(apperr.KindNotFound, "Document not found")
		}
		return nil, nil, err
	}
	data, err := g.blobs.Get(ctx, doc.BlobID)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}
