package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
	"github.com/magabrotheeeer/channel-paywall/internal/services/invite"
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
)

// Payments переходы записи о платеже.
type Payments interface {
	Create(ctx context.Context, req subscription.CreateRequest) (*models.Payment, error)
	AttachReceipt(ctx context.Context, key int64, receiptRef string) (*models.Payment, error)
	Approve(ctx context.Context, key int64) (*subscription.ApprovalResult, error)
	Reject(ctx context.Context, key int64) (*models.Payment, error)
	Cancel(ctx context.Context, key int64) (*models.Payment, error)
}

// Invites ручной отзыв ссылки.
type Invites interface {
	RevokeManual(ctx context.Context, userID int64) error
}

// Window окно продаж закрытых тарифов.
type Window interface {
	IsAvailable(userID int64) bool
	NextWindowStart() time.Time
	IsCloseToOpening() bool
	TimeUntilOpening() (hours, minutes int)
}

// Reminders напоминания об открытии продаж.
type Reminders interface {
	Schedule(ctx context.Context, userID int64, product models.Product) (*models.Reminder, error)
}

// Sessions состояние диалога покупки.
type Sessions interface {
	Get(ctx context.Context, userID int64) (models.Session, bool, error)
	Put(ctx context.Context, userID int64, sess models.Session) error
	Clear(ctx context.Context, userID int64) error
}

// Users профили пользователей бота.
type Users interface {
	UpsertBotUser(ctx context.Context, u *models.BotUser) error
}

// Messenger исходящие сообщения бота.
type Messenger interface {
	Reply(ctx context.Context, chatID int64, text string, keyboard *tgmodels.InlineKeyboardMarkup) error
	Edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *tgmodels.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SendPhoto(ctx context.Context, userID int64, fileID, caption string, keyboard *tgmodels.InlineKeyboardMarkup) error
	CheckChannel(ctx context.Context) (string, error)
	AdminID() int64
}

// Clock текущее время в поясе бота.
type Clock interface {
	Now() time.Time
	Format(t time.Time) string
}

// HandlerDeps зависимости обработчиков.
type HandlerDeps struct {
	Payments  Payments
	Invites   Invites
	Window    Window
	Reminders Reminders
	Sessions  Sessions
	Users     Users
	Messenger Messenger
	Clock     Clock
	Catalog   models.Catalog
}

// Handlers обрабатывает команды, кнопки и фото чеков.
type Handlers struct {
	HandlerDeps
	log *slog.Logger
}

// NewHandlers создаёт Handlers.
func NewHandlers(deps HandlerDeps, log *slog.Logger) *Handlers {
	return &Handlers{HandlerDeps: deps, log: log}
}

// Register подключает обработчики к боту клиента.
func (h *Handlers) Register(c *Client) {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.wrap(h.onStart))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/joined", bot.MatchTypeExact, h.wrap(h.onJoined))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/check_channel", bot.MatchTypeExact, h.wrap(h.onCheckChannel))
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, h.wrap(h.onCallback))
	c.bot.RegisterHandlerMatchFunc(isPhoto, h.wrap(h.onPhoto))
}

func (h *Handlers) wrap(fn func(ctx context.Context, update *tgmodels.Update)) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
		fn(ctx, update)
	}
}

func isPhoto(update *tgmodels.Update) bool {
	return update.Message != nil && len(update.Message.Photo) > 0
}

func handle(u *tgmodels.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func (h *Handlers) reply(ctx context.Context, chatID int64, text string, kb *tgmodels.InlineKeyboardMarkup) {
	if err := h.Messenger.Reply(ctx, chatID, text, kb); err != nil {
		h.log.Warn("failed to reply", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}

func (h *Handlers) answer(ctx context.Context, cb *tgmodels.CallbackQuery, text string, alert bool) {
	if err := h.Messenger.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		h.log.Warn("failed to answer callback", sl.Err(err))
	}
}

// --- Commands ---

func (h *Handlers) onStart(ctx context.Context, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	now := h.Clock.Now()
	err := h.Users.UpsertBotUser(ctx, &models.BotUser{
		UserID:          msg.From.ID,
		Username:        msg.From.Username,
		FirstName:       msg.From.FirstName,
		LastName:        msg.From.LastName,
		LanguageCode:    msg.From.LanguageCode,
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		h.log.Error("failed to save bot user", sl.UserID(msg.From.ID), sl.Err(err))
	}

	h.reply(ctx, msg.Chat.ID, fmt.Sprintf(startText, handle(msg.From)), mainMenuKeyboard())
}

func (h *Handlers) onJoined(ctx context.Context, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	err := h.Invites.RevokeManual(ctx, msg.From.ID)
	switch {
	case err == nil:
		_ = h.Sessions.Clear(ctx, msg.From.ID)
		h.reply(ctx, msg.Chat.ID, joinedText, nil)
	case errors.Is(err, models.ErrNoActiveLink):
		h.reply(ctx, msg.Chat.ID, noActiveLinkText, nil)
	case errors.Is(err, models.ErrNotMember):
		h.reply(ctx, msg.Chat.ID, notMemberText, nil)
	case errors.Is(err, models.ErrMembershipUnknown):
		h.log.Warn("membership check failed", sl.UserID(msg.From.ID), sl.Err(err))
		h.reply(ctx, msg.Chat.ID, membershipUnknownText, nil)
	default:
		h.log.Error("failed to revoke invite link", sl.UserID(msg.From.ID), sl.Err(err))
		h.reply(ctx, msg.Chat.ID, commandErrorText, nil)
	}
}

func (h *Handlers) onCheckChannel(ctx context.Context, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.ID != h.Messenger.AdminID() {
		return
	}
	report, err := h.Messenger.CheckChannel(ctx)
	if err != nil {
		h.log.Error("channel check failed", sl.Err(err))
	}
	h.reply(ctx, msg.Chat.ID, report, nil)
}

// --- Receipt ---

func (h *Handlers) onPhoto(ctx context.Context, update *tgmodels.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	sess, ok, err := h.Sessions.Get(ctx, userID)
	if err != nil {
		h.log.Error("failed to load session", sl.UserID(userID), sl.Err(err))
		return
	}
	if !ok || !sess.WaitingForReceipt || sess.PaymentKey == 0 {
		return
	}

	// Последний размер в массиве самый большой.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	p, err := h.Payments.AttachReceipt(ctx, sess.PaymentKey, fileID)
	switch {
	case errors.Is(err, models.ErrDecisionConflict):
		_ = h.Sessions.Clear(ctx, userID)
		h.reply(ctx, msg.Chat.ID, paymentClosedText, backToMainKeyboard())
		return
	case err != nil:
		h.log.Error("failed to attach receipt", sl.PaymentKey(sess.PaymentKey), sl.Err(err))
		h.reply(ctx, msg.Chat.ID, commandErrorText, nil)
		return
	}

	err = h.Messenger.SendPhoto(ctx, h.Messenger.AdminID(), fileID,
		receiptCaption(p, h.Clock.Format(p.CreatedAt)), adminConfirmationKeyboard(p.Key))
	if err != nil {
		h.log.Error("failed to forward receipt to admin", sl.PaymentKey(p.Key), sl.Err(err))
	}

	sess.WaitingForReceipt = false
	if err := h.Sessions.Put(ctx, userID, sess); err != nil {
		h.log.Warn("failed to save session", sl.UserID(userID), sl.Err(err))
	}
	h.reply(ctx, msg.Chat.ID, receiptSentText, backToMainKeyboard())
}

// --- Callbacks ---

func (h *Handlers) onCallback(ctx context.Context, update *tgmodels.Update) {
	cb := update.CallbackQuery
	if cb == nil || cb.Message.Message == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Message.Chat.ID
	messageID := cb.Message.Message.ID

	switch {
	case data == cbBackToMain:
		h.edit(ctx, chatID, messageID, mainMenuText, mainMenuKeyboard())
	case data == cbInfo:
		h.edit(ctx, chatID, messageID, infoText, backToMainKeyboard())
	case data == cbSelectSubscription:
		h.showTariffs(ctx, chatID, messageID)
	case data == cbCancelPayment:
		h.cancelPayment(ctx, cb, chatID, messageID)
	case strings.HasPrefix(data, cbTariffPrefix):
		if !h.selectTariff(ctx, cb, chatID, messageID, strings.TrimPrefix(data, cbTariffPrefix)) {
			return
		}
	case strings.HasPrefix(data, cbVariantPrefix):
		if !h.selectVariant(ctx, cb, chatID, messageID) {
			return
		}
	case strings.HasPrefix(data, cbMethodPrefix):
		if !h.selectMethod(ctx, cb, chatID, messageID, strings.TrimPrefix(data, cbMethodPrefix)) {
			return
		}
	case strings.HasPrefix(data, cbReceiptPrefix):
		h.awaitReceipt(ctx, cb, chatID)
	case strings.HasPrefix(data, cbRemindPrefix):
		h.scheduleReminder(ctx, cb, strings.TrimPrefix(data, cbRemindPrefix))
		return
	case strings.HasPrefix(data, cbConfirmPrefix):
		if !h.confirm(ctx, cb, chatID) {
			return
		}
	case strings.HasPrefix(data, cbRejectPrefix):
		if !h.reject(ctx, cb, chatID) {
			return
		}
	default:
		h.log.Warn("unknown callback", slog.String("data", data), sl.UserID(cb.From.ID))
	}
	h.answer(ctx, cb, "", false)
}

func (h *Handlers) edit(ctx context.Context, chatID int64, messageID int, text string, kb *tgmodels.InlineKeyboardMarkup) {
	if err := h.Messenger.Edit(ctx, chatID, messageID, text, kb); err != nil {
		h.log.Warn("failed to edit message", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}

func (h *Handlers) showTariffs(ctx context.Context, chatID int64, messageID int) {
	if len(h.Catalog.Products) == 0 {
		h.edit(ctx, chatID, messageID, noTariffsText, backToMainKeyboard())
		return
	}
	h.edit(ctx, chatID, messageID, selectTariffText, tariffsKeyboard(h.Catalog.Products))
}

func (h *Handlers) selectTariff(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64, messageID int, productID string) bool {
	p, ok := h.Catalog.Product(productID)
	if !ok {
		h.answer(ctx, cb, "❌ Тариф не найден", true)
		return false
	}

	if p.Gated && !h.Window.IsAvailable(cb.From.ID) {
		h.edit(ctx, chatID, messageID, h.unavailableText(p), reminderKeyboard(p.ID))
		return true
	}

	if err := h.Sessions.Put(ctx, cb.From.ID, models.Session{ProductID: p.ID}); err != nil {
		h.log.Error("failed to save session", sl.UserID(cb.From.ID), sl.Err(err))
		h.answer(ctx, cb, "❌ Произошла ошибка", true)
		return false
	}

	if len(p.Variants) > 0 {
		h.edit(ctx, chatID, messageID, fmt.Sprintf(selectVariantText, p.Name), variantsKeyboard(p))
		return true
	}
	h.showMethods(ctx, chatID, messageID, p, p.Price)
	return true
}

func (h *Handlers) unavailableText(p models.Product) string {
	text := fmt.Sprintf(unavailableText, p.Name, h.Clock.Format(h.Window.NextWindowStart()))
	if h.Window.IsCloseToOpening() {
		hours, minutes := h.Window.TimeUntilOpening()
		text += fmt.Sprintf(countdownText, hours, minutes)
	}
	return text
}

func (h *Handlers) selectVariant(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64, messageID int) bool {
	productID, months, ok := parseVariant(cb.Data)
	if !ok {
		h.answer(ctx, cb, "❌ Тариф не найден", true)
		return false
	}
	p, ok := h.Catalog.Product(productID)
	if !ok {
		h.answer(ctx, cb, "❌ Тариф не найден", true)
		return false
	}
	v, ok := p.Variant(months)
	if !ok {
		h.answer(ctx, cb, "❌ Вариант не найден", true)
		return false
	}

	sess := models.Session{ProductID: p.ID, Months: v.Months}
	if err := h.Sessions.Put(ctx, cb.From.ID, sess); err != nil {
		h.log.Error("failed to save session", sl.UserID(cb.From.ID), sl.Err(err))
		h.answer(ctx, cb, "❌ Произошла ошибка", true)
		return false
	}
	h.showMethods(ctx, chatID, messageID, p, v.Price)
	return true
}

func (h *Handlers) showMethods(ctx context.Context, chatID int64, messageID int, p models.Product, price float64) {
	if len(h.Catalog.Methods) == 0 {
		h.edit(ctx, chatID, messageID, noMethodsText, backToMainKeyboard())
		return
	}
	text := fmt.Sprintf(selectMethodText, p.Name, subscription.FormatPrice(price, p.Currency()))
	h.edit(ctx, chatID, messageID, text, methodsKeyboard(h.Catalog.Methods))
}

func (h *Handlers) selectMethod(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64, messageID int, methodID string) bool {
	userID := cb.From.ID
	sess, ok, err := h.Sessions.Get(ctx, userID)
	if err != nil || !ok || sess.ProductID == "" {
		h.answer(ctx, cb, "❌ Сессия истекла, начните заново", true)
		return false
	}
	p, ok := h.Catalog.Product(sess.ProductID)
	if !ok {
		h.answer(ctx, cb, "❌ Тариф не найден", true)
		return false
	}
	m, ok := h.Catalog.Method(methodID)
	if !ok {
		h.answer(ctx, cb, "❌ Метод оплаты не найден", true)
		return false
	}

	payment, err := h.Payments.Create(ctx, subscription.CreateRequest{
		Product:  p,
		Months:   sess.Months,
		Method:   m,
		UserID:   userID,
		Username: handle(&cb.From),
	})
	if err != nil {
		h.log.Error("failed to create payment", sl.UserID(userID), sl.Err(err))
		h.answer(ctx, cb, "❌ Ошибка создания платежа", true)
		return false
	}

	sess.MethodID = m.ID
	sess.PaymentKey = payment.Key
	if err := h.Sessions.Put(ctx, userID, sess); err != nil {
		h.log.Warn("failed to save session", sl.UserID(userID), sl.Err(err))
	}
	h.edit(ctx, chatID, messageID, requisitesText(m, payment), paymentConfirmationKeyboard(payment.Key))
	return true
}

func (h *Handlers) awaitReceipt(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64) {
	key, ok := parseKey(cb.Data, cbReceiptPrefix)
	if !ok {
		return
	}
	userID := cb.From.ID
	sess, _, err := h.Sessions.Get(ctx, userID)
	if err != nil {
		h.log.Warn("failed to load session", sl.UserID(userID), sl.Err(err))
	}
	sess.PaymentKey = key
	sess.WaitingForReceipt = true
	if err := h.Sessions.Put(ctx, userID, sess); err != nil {
		h.log.Error("failed to save session", sl.UserID(userID), sl.Err(err))
		return
	}
	h.reply(ctx, chatID, sendReceiptText, nil)
}

func (h *Handlers) cancelPayment(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64, messageID int) {
	userID := cb.From.ID
	sess, ok, err := h.Sessions.Get(ctx, userID)
	if err != nil {
		h.log.Warn("failed to load session", sl.UserID(userID), sl.Err(err))
	}
	if ok && sess.PaymentKey != 0 {
		if _, err := h.Payments.Cancel(ctx, sess.PaymentKey); err != nil && !errors.Is(err, models.ErrDecisionConflict) {
			h.log.Error("failed to cancel payment", sl.PaymentKey(sess.PaymentKey), sl.Err(err))
		}
	}
	if err := h.Sessions.Clear(ctx, userID); err != nil {
		h.log.Warn("failed to clear session", sl.UserID(userID), sl.Err(err))
	}
	h.edit(ctx, chatID, messageID, cancelledText, backToMainKeyboard())
}

func (h *Handlers) scheduleReminder(ctx context.Context, cb *tgmodels.CallbackQuery, productID string) {
	p, ok := h.Catalog.Product(productID)
	if !ok {
		h.answer(ctx, cb, "❌ Тариф не найден", true)
		return
	}
	r, err := h.Reminders.Schedule(ctx, cb.From.ID, p)
	switch {
	case errors.Is(err, models.ErrAlreadyScheduled):
		h.answer(ctx, cb, "🔔 Напоминание уже установлено", true)
	case err != nil:
		h.log.Error("failed to schedule reminder", sl.UserID(cb.From.ID), sl.Err(err))
		h.answer(ctx, cb, "❌ Не удалось установить напоминание", true)
	default:
		h.answer(ctx, cb, "🔔 Напомним "+h.Clock.Format(r.FireAt), true)
	}
}

func (h *Handlers) confirm(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64) bool {
	if cb.From.ID != h.Messenger.AdminID() {
		h.answer(ctx, cb, "⛔ Недостаточно прав", true)
		return false
	}
	key, ok := parseKey(cb.Data, cbConfirmPrefix)
	if !ok {
		h.answer(ctx, cb, "❌ Платеж не найден", true)
		return false
	}

	res, err := h.Payments.Approve(ctx, key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.answer(ctx, cb, "❌ Платеж не найден", true)
		return false
	case errors.Is(err, models.ErrDecisionConflict):
		h.answer(ctx, cb, "ℹ️ Платеж уже обработан", true)
		return false
	case errors.Is(err, models.ErrInviteIssue):
		h.reply(ctx, chatID, invite.Diagnose(err), nil)
		h.answer(ctx, cb, "❌ Не удалось создать ссылку", true)
		return false
	case errors.Is(err, models.ErrRenewalNotCredited):
		h.log.Error("renewal approved but not credited", sl.PaymentKey(key), sl.Err(err))
		var renewalErr *subscription.RenewalError
		if errors.As(err, &renewalErr) {
			h.reply(ctx, chatID, fmt.Sprintf(adminRenewalNotCreditedText,
				renewalErr.ActiveKey, renewalErr.Months, renewalErr.ActiveKey), nil)
		}
		h.answer(ctx, cb, "⚠️ Продление не начислено", true)
		return false
	case err != nil:
		h.log.Error("failed to approve payment", sl.PaymentKey(key), sl.Err(err))
		h.answer(ctx, cb, "❌ Произошла ошибка", true)
		return false
	}

	if res.Kind == subscription.ApprovalRenewed {
		end := ""
		if res.Extended != nil && res.Extended.SubscriptionEnd != nil {
			end = h.Clock.Format(*res.Extended.SubscriptionEnd)
		}
		h.reply(ctx, chatID, fmt.Sprintf(adminRenewedText, res.Payment.Username, end), nil)
		return true
	}
	h.reply(ctx, chatID, fmt.Sprintf(adminApprovedText, res.Payment.Username), nil)
	return true
}

func (h *Handlers) reject(ctx context.Context, cb *tgmodels.CallbackQuery, chatID int64) bool {
	if cb.From.ID != h.Messenger.AdminID() {
		h.answer(ctx, cb, "⛔ Недостаточно прав", true)
		return false
	}
	key, ok := parseKey(cb.Data, cbRejectPrefix)
	if !ok {
		h.answer(ctx, cb, "❌ Платеж не найден", true)
		return false
	}

	p, err := h.Payments.Reject(ctx, key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.answer(ctx, cb, "❌ Платеж не найден", true)
		return false
	case errors.Is(err, models.ErrDecisionConflict):
		h.answer(ctx, cb, "ℹ️ Платеж уже обработан", true)
		return false
	case err != nil:
		h.log.Error("failed to reject payment", sl.PaymentKey(key), sl.Err(err))
		h.answer(ctx, cb, "❌ Произошла ошибка", true)
		return false
	}
	h.reply(ctx, chatID, fmt.Sprintf(adminRejectedText, p.Username), nil)
	return true
}
