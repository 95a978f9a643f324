package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/Aklabu/e-commerce/internal/logger"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		logger.Log.Debug("telegram bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		logger.Log.Debug("telegram admin chat not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// TradeApplicationAlert contains trade application data for the admin chat.
type TradeApplicationAlert struct {
	AccountID    string
	Email        string
	Name         string
	PhoneNumber  string
	BusinessType string
	Documents    int
	Resubmission bool
	SubmittedAt  time.Time
}

// NotifyTradeApplication tells staff that a trade application awaits review.
func (s *TelegramService) NotifyTradeApplication(ctx context.Context, app TradeApplicationAlert) error {
	if s.adminChatID == "" {
		return nil
	}

	title := "🆕 NEW TRADE APPLICATION"
	if app.Resubmission {
		title = "🔁 TRADE APPLICATION RESUBMITTED"
	}

	message := fmt.Sprintf(`<b>%s</b>
<b>👤 Customer:</b> %s
<b>📧 Email:</b> %s
<b>📞 Phone:</b> %s
<b>🏢 Business:</b> %s
<b>📎 Documents:</b> %d
<b>🕒 Submitted:</b> %s
━━━━━━━━━━━━━━━━━━
<code>%s</code>`,
		title,
		html.EscapeString(app.Name),
		html.EscapeString(app.Email),
		html.EscapeString(app.PhoneNumber),
		html.EscapeString(app.BusinessType),
		app.Documents,
		app.SubmittedAt.Format("2006-01-02 15:04 MST"),
		app.AccountID,
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
