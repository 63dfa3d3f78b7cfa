// Package telegram hosts the Telegram client and the chat command router.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/config"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and routes commands to the router.
type Client struct {
	bot    botAPI
	router *Router
	logger *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling.
func NewClient(cfg config.Config, router *Router, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		router: router,
		logger: logger,
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	c.bot = tgBot

	return c, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)

	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
	}
	if meta.text != "" {
		fields["text"] = meta.text
	}
	if meta.userID != 0 {
		fields["telegram_id"] = meta.userID
	}
	if meta.chatID != 0 {
		fields["chat_id"] = meta.chatID
	}
	c.logger.WithFields(fields).Debug("telegram update received")

	// Edits are logged but never re-run, so a corrected /book is not booked twice.
	if meta.updateType != "message" || meta.userID == 0 {
		return
	}

	command, args, ok := parseCommand(meta.text)
	if !ok {
		return
	}

	reply := c.router.Handle(ctx, Request{
		TelegramID: meta.userID,
		ChatID:     meta.chatID,
		Command:    command,
		Args:       args,
	})
	c.send(ctx, meta.chatID, reply)
}

func (c *Client) send(ctx context.Context, chatID int64, reply Reply) {
	if reply.Text == "" || c.bot == nil {
		return
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if reply.Preformatted {
		params.Text = "<pre>" + html.EscapeString(reply.Text) + "</pre>"
		params.ParseMode = models.ParseModeHTML
	}

	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_send_error",
			"chat_id": chatID,
		}).WithError(err).Error("failed to send reply")
	}
}

// parseCommand splits "/cmd@bot args" into a lower-case command name and the
// remaining text.
func parseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, args, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}

	return strings.ToLower(head), strings.TrimSpace(args), true
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     update.Message.Chat.ID,
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID:     userID(update.EditedMessage.From),
			chatID:     update.EditedMessage.Chat.ID,
			text:       strings.TrimSpace(update.EditedMessage.Text),
			updateType: "edited_message",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}
