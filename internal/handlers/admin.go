package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/services"
	"github.com/Aklabu/e-commerce/internal/utils"
)

type accountDirectory interface {
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
	Account(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetActive(ctx context.Context, actorID, accountID uuid.UUID, active bool) error
	ExportAccountsCSV(ctx context.Context, filter models.AccountFilter, w io.Writer) error
}

type tradeReviewer interface {
	services.TradeApprover
	Applications(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.TradeInfo, int64, error)
	Document(ctx context.Context, documentID uuid.UUID) (*models.TradeDocument, []byte, error)
}

// AdminHandler manages staff-only endpoints.
type AdminHandler struct {
	accounts accountDirectory
	trade    tradeReviewer
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(accounts *services.AdminService, trade *services.TradeGate) *AdminHandler {
	return &AdminHandler{accounts: accounts, trade: trade}
}

// DashboardStats returns headline counts for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	_, total, err := h.accounts.ListAccounts(ctx, models.AccountFilter{Limit: 1})
	if err != nil {
		return err
	}
	_, trade, err := h.accounts.ListAccounts(ctx, models.AccountFilter{CustomerType: models.CustomerTrade, Limit: 1})
	if err != nil {
		return err
	}

	applications := fiber.Map{}
	for _, status := range []models.ApprovalStatus{models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected} {
		_, n, err := h.trade.Applications(ctx, status, 1, 0)
		if err != nil {
			return err
		}
		applications[strings.ToLower(string(status))] = n
	}

	return ok(c, "Dashboard statistics retrieved", fiber.Map{
		"total_customers":    total,
		"retail_customers":   total - trade,
		"trade_customers":    trade,
		"trade_applications": applications,
	})
}

func accountFilter(c *fiber.Ctx) models.AccountFilter {
	return models.AccountFilter{
		Search:       strings.TrimSpace(c.Query("search")),
		CustomerType: models.CustomerType(c.Query("customer_type")),
		Active:       queryBool(c, "active"),
	}
}

// ListAccounts returns a page of customers.
func (h *AdminHandler) ListAccounts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := accountFilter(c)
	filter.Limit = pg.Limit
	filter.Offset = pg.Offset

	accounts, total, err := h.accounts.ListAccounts(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return ok(c, "Customers retrieved", fiber.Map{
		"items":      accounts,
		"pagination": pg.Meta(total),
	})
}

// ExportAccounts streams matching customers as a CSV attachment.
func (h *AdminHandler) ExportAccounts(c *fiber.Ctx) error {
	filter := accountFilter(c)
	if filter.CustomerType != "" && !filter.CustomerType.Valid() {
		return apperr.New(apperr.KindValidation, "Customer type must be Retail or Trade.")
	}

	ctx := c.UserContext()
	name := fmt.Sprintf("customers-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.accounts.ExportAccountsCSV(ctx, filter, w); err != nil {
			logger.Log.Error("customer export failed", "error", err)
		}
		_ = w.Flush()
	})
	return nil
}

func (h *AdminHandler) GetAccount(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	account, err := h.accounts.Account(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, "Customer retrieved", account)
}

func (h *AdminHandler) ActivateAccount(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *AdminHandler) DeactivateAccount(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *AdminHandler) setActive(c *fiber.Ctx, active bool) error {
	actorID, err := currentAccount(c)
	if err != nil {
		return err
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.accounts.SetActive(c.UserContext(), actorID, id, active); err != nil {
		return err
	}

	message := "Customer deactivated"
	if active {
		message = "Customer activated"
	}
	return ok(c, message, fiber.Map{"id": id, "is_active": active})
}

// ListTradeApplications lists trade applications, oldest first. The status
// query param narrows by approval status.
func (h *AdminHandler) ListTradeApplications(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	status := models.ApprovalStatus(c.Query("status"))

	items, total, err := h.trade.Applications(c.UserContext(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return ok(c, "Trade applications retrieved", fiber.Map{
		"items":      items,
		"pagination": pg.Meta(total),
	})
}

func (h *AdminHandler) ApproveTrade(c *fiber.Ctx) error {
	reviewerID, err := currentAccount(c)
	if err != nil {
		return err
	}
	accountID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	info, err := h.trade.Approve(c.UserContext(), accountID, reviewerID)
	if err != nil {
		return err
	}
	return ok(c, "Trade application approved", info)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *AdminHandler) RejectTrade(c *fiber.Ctx) error {
	reviewerID, err := currentAccount(c)
	if err != nil {
		return err
	}
	accountID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req rejectRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	info, err := h.trade.Reject(c.UserContext(), accountID, reviewerID, req.Reason)
	if err != nil {
		return err
	}
	return ok(c, "Trade application rejected", info)
}

// DownloadDocument sends a supporting document back with its stored type.
func (h *AdminHandler) DownloadDocument(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	doc, data, err := h.trade.Document(c.UserContext(), id)
	if err != nil {
		return err
	}

	c.Attachment(doc.FileName)
	c.Set(fiber.HeaderContentType, doc.ContentType)
	return c.Send(data)
}
