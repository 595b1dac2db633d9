package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/discussion-review/internal/application/port"
	"go.uber.org/zap"
)

// messageSender is the part of MessageAPI the messenger needs
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Messenger posts workflow notices to one Lark group chat
type Messenger struct {
	api    messageSender
	chatID string
	logger *zap.Logger
}

var _ port.NotificationSender = (*Messenger)(nil)

// NewMessenger creates a new Lark notification sender
func NewMessenger(api messageSender, chatID string, logger *zap.Logger) *Messenger {
	return &Messenger{
		api:    api,
		chatID: chatID,
		logger: logger,
	}
}

// NewNotificationSender returns a Lark messenger, or a sender that only logs
// when the bot is not configured.
func NewNotificationSender(cfg Config, logger *zap.Logger) port.NotificationSender {
	if !cfg.Enabled() {
		logger.Info("Lark notifications disabled, app_id, app_secret or chat_id missing")
		return &LogSender{logger: logger}
	}
	client := NewSDKClient(cfg, logger)
	return NewMessenger(NewMessageAPI(client, logger), client.ChatID(), logger)
}

// SendText posts a plain text message
func (m *Messenger) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}

	if _, err := m.api.SendMessage(ctx, ReceiveIDTypeChat, m.chatID, "text", string(content)); err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	return nil
}

// SendCard posts an interactive card with a title and one markdown line per entry
func (m *Messenger) SendCard(ctx context.Context, title string, lines []string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("card title cannot be empty")
	}

	content, err := json.Marshal(buildCard(title, lines))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	if _, err := m.api.SendMessage(ctx, ReceiveIDTypeChat, m.chatID, "interactive", string(content)); err != nil {
		return fmt.Errorf("failed to send card message: %w", err)
	}
	return nil
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardElement struct {
	Tag  string   `json:"tag"`
	Text cardText `json:"text"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type card struct {
	Config   map[string]bool `json:"config"`
	Header   cardHeader      `json:"header"`
	Elements []cardElement   `json:"elements"`
}

func buildCard(title string, lines []string) card {
	c := card{
		Config: map[string]bool{"wide_screen_mode": true},
		Header: cardHeader{
			Title:    cardText{Tag: "plain_text", Content: title},
			Template: "orange",
		},
		Elements: []cardElement{},
	}
	if len(lines) > 0 {
		c.Elements = append(c.Elements, cardElement{
			Tag:  "div",
			Text: cardText{Tag: "lark_md", Content: strings.Join(lines, "\n")},
		})
	}
	return c
}

// LogSender writes notices to the log instead of a chat
type LogSender struct {
	logger *zap.Logger
}

var _ port.NotificationSender = (*LogSender)(nil)

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendText(ctx context.Context, text string) error {
	s.logger.Info("Notification", zap.String("text", text))
	return nil
}

func (s *LogSender) SendCard(ctx context.Context, title string, lines []string) error {
	s.logger.Info("Notification", zap.String("title", title), zap.Strings("lines", lines))
	return nil
}
