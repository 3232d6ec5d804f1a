// Package telegram связывает бота Telegram с сервисами подписки:
// Client работает с каналом и доставляет сообщения, Handlers обрабатывает команды и кнопки.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Client обёртка над ботом с идентификаторами канала и администратора.
type Client struct {
	bot       *bot.Bot
	channelID int64
	adminID   int64
	log       *slog.Logger
}

// NewClient создаёт бота. Дополнительные опции передаются в bot.New.
func NewClient(cfg config.Telegram, log *slog.Logger, opts ...bot.Option) (*Client, error) {
	const op = "telegram.NewClient"
	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{
		bot:       b,
		channelID: cfg.ChannelID,
		adminID:   cfg.AdminID,
		log:       log,
	}, nil
}

// Start запускает long polling до отмены ctx.
func (c *Client) Start(ctx context.Context) {
	c.bot.Start(ctx)
}

// AdminID возвращает идентификатор администратора.
func (c *Client) AdminID() int64 {
	return c.adminID
}

// Send отправляет простой текст.
func (c *Client) Send(ctx context.Context, userID int64, text string) error {
	return c.SendFormatted(ctx, userID, text, "")
}

// SendFormatted отправляет текст с разметкой parseMode (HTML, Markdown, MarkdownV2 или пусто).
func (c *Client) SendFormatted(ctx context.Context, userID int64, text, parseMode string) error {
	const op = "telegram.SendFormatted"
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    userID,
		Text:      text,
		ParseMode: tgmodels.ParseMode(parseMode),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Reply отправляет HTML-сообщение с необязательной клавиатурой.
func (c *Client) Reply(ctx context.Context, chatID int64, text string, keyboard *tgmodels.InlineKeyboardMarkup) error {
	const op = "telegram.Reply"
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Edit заменяет текст и клавиатуру сообщения.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgmodels.InlineKeyboardMarkup) error {
	const op = "telegram.Edit"
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := c.bot.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AnswerCallback убирает индикатор загрузки на кнопке, при необходимости с текстом.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	const op = "telegram.AnswerCallback"
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendPhoto отправляет фото по file_id с подписью.
func (c *Client) SendPhoto(ctx context.Context, userID int64, fileID, caption string, keyboard *tgmodels.InlineKeyboardMarkup) error {
	const op = "telegram.SendPhoto"
	params := &bot.SendPhotoParams{
		ChatID:  userID,
		Photo:   &tgmodels.InputFileString{Data: fileID},
		Caption: caption,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := c.bot.SendPhoto(ctx, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Membership возвращает статус пользователя в канале.
func (c *Client) Membership(ctx context.Context, userID int64) (models.MembershipStatus, error) {
	const op = "telegram.Membership"
	member, err := c.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: c.channelID,
		UserID: userID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return membershipStatus(member), nil
}

// membershipStatus переводит тип участника из Bot API в статус модели.
// Restricted без is_member уже не состоит в канале.
func membershipStatus(member *tgmodels.ChatMember) models.MembershipStatus {
	switch member.Type {
	case tgmodels.ChatMemberTypeOwner:
		return models.MemberOwner
	case tgmodels.ChatMemberTypeAdministrator:
		return models.MemberAdministrator
	case tgmodels.ChatMemberTypeMember:
		return models.MemberMember
	case tgmodels.ChatMemberTypeRestricted:
		if member.Restricted != nil && !member.Restricted.IsMember {
			return models.MemberLeft
		}
		return models.MemberRestricted
	case tgmodels.ChatMemberTypeLeft:
		return models.MemberLeft
	case tgmodels.ChatMemberTypeBanned:
		return models.MemberKicked
	default:
		return ""
	}
}

// CreateInviteLink создаёт одноразовую ссылку в канал, действующую до expireAt.
func (c *Client) CreateInviteLink(ctx context.Context, name string, expireAt time.Time) (string, error) {
	const op = "telegram.CreateInviteLink"
	link, err := c.bot.CreateChatInviteLink(ctx, &bot.CreateChatInviteLinkParams{
		ChatID:      c.channelID,
		Name:        name,
		ExpireDate:  int(expireAt.Unix()),
		MemberLimit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return link.InviteLink, nil
}

// RevokeInviteLink отзывает ссылку.
func (c *Client) RevokeInviteLink(ctx context.Context, link string) error {
	const op = "telegram.RevokeInviteLink"
	_, err := c.bot.RevokeChatInviteLink(ctx, &bot.RevokeChatInviteLinkParams{
		ChatID:     c.channelID,
		InviteLink: link,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemoveMember исключает пользователя из канала и сразу снимает бан,
// чтобы он мог вернуться по новой ссылке после оплаты.
func (c *Client) RemoveMember(ctx context.Context, userID int64) error {
	const op = "telegram.RemoveMember"
	if _, err := c.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: c.channelID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("%s: ban: %w", op, err)
	}
	if _, err := c.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       c.channelID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		return fmt.Errorf("%s: unban: %w", op, err)
	}
	return nil
}

// CheckChannel проверяет, что бот администратор канала с правом приглашать.
// Возвращает отчёт для администратора.
func (c *Client) CheckChannel(ctx context.Context) (string, error) {
	const op = "telegram.CheckChannel"
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	member, err := c.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: c.channelID,
		UserID: me.ID,
	})
	if err != nil {
		return channelErrorReport(c.channelID, err), fmt.Errorf("%s: %w", op, err)
	}
	return channelReport(c.channelID, member), nil
}

func channelReport(channelID int64, member *tgmodels.ChatMember) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Канал найден: %d\n", channelID)
	fmt.Fprintf(&sb, "✅ Статус бота в канале: %s\n", membershipStatus(member))

	switch {
	case member.Type == tgmodels.ChatMemberTypeOwner:
		sb.WriteString("✅ Бот является владельцем канала")
	case member.Type != tgmodels.ChatMemberTypeAdministrator:
		sb.WriteString("⚠️ Бот не является администратором канала! " +
			"Добавьте бота как администратора с правом \"Invite users via link\"")
	case member.Administrator != nil && !member.Administrator.CanInviteUsers:
		sb.WriteString("⚠️ У бота нет права \"Invite users via link\"")
	default:
		sb.WriteString("✅ Бот имеет права администратора")
	}
	return sb.String()
}

func channelErrorReport(channelID int64, err error) string {
	return fmt.Sprintf("❌ Ошибка доступа к каналу %d: %s\n\n"+
		"Проверьте:\n"+
		"1. TELEGRAM_CHANNEL_ID указан правильно (должен начинаться с -100)\n"+
		"2. Бот добавлен в канал как администратор", channelID, err)
}
