package telegram

import (
	"fmt"
	"html"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
)

const (
	startText = "👋 Привет, %s!\n\nДобро пожаловать в бот подписок.\n\nВыберите действие:"

	mainMenuText = "📋 Главное меню\n\nВыберите действие:"

	infoText = "ℹ️ Информация о боте\n\n" +
		"Этот бот позволяет оформить подписку на закрытый канал.\n\n" +
		"После оплаты вы получите одноразовую ссылку для вступления в канал."

	noTariffsText     = "❌ К сожалению, сейчас нет доступных тарифов."
	noMethodsText     = "❌ К сожалению, сейчас нет доступных методов оплаты."
	selectTariffText  = "💳 Выберите тариф:"
	selectVariantText = "📦 Тариф: %s\n\n⏳ Выберите срок подписки:"
	selectMethodText  = "📦 Выбран тариф: %s\n💰 Цена: %s\n\n💳 Выберите способ оплаты:"

	unavailableText = "🔒 Продажа тарифа «%s» сейчас закрыта.\n\n" +
		"📅 Следующее открытие: %s\n\n" +
		"Нажмите кнопку ниже, и мы напомним вам заранее."
	countdownText = "\n\n⏳ До открытия осталось: %d ч %d мин"

	sendReceiptText = "📸 Пожалуйста, отправьте скриншот чека об оплате."
	receiptSentText = "✅ Чек отправлен на проверку!\n\n" +
		"Ожидайте подтверждения от администратора. Обычно это занимает несколько минут."
	paymentClosedText = "ℹ️ Этот платеж уже обработан или отменен.\n\nОформите новую заявку через главное меню."
	cancelledText     = "❌ Платеж отменен.\n\nВернитесь в главное меню."

	joinedText = "✅ Отлично! Ваша пригласительная ссылка была отозвана.\n\n" +
		"Теперь никто другой не сможет использовать её для входа в канал."
	noActiveLinkText = "❌ У вас нет активной пригласительной ссылки.\n\n" +
		"Если вы уже использовали ссылку, она была отозвана автоматически."
	notMemberText = "❌ Вы не состоите в канале.\n\n" +
		"Сначала присоединитесь по ссылке, затем используйте эту команду."
	membershipUnknownText = "⚠️ Не удалось проверить ваше членство в канале.\n\n" +
		"Если вы присоединились, ссылка будет автоматически отозвана через 30 минут."
	commandErrorText = "❌ Произошла ошибка при обработке команды."

	adminApprovedText = "✅ Платеж подтвержден и ссылка отправлена пользователю @%s"
	adminRenewedText  = "🔄 Платеж подтвержден как продление для @%s. Подписка действует до %s"
	adminRejectedText = "❌ Платеж отклонен для пользователя @%s"

	adminRenewalNotCreditedText = "⚠️ Продление подтверждено, но подписка #%d не продлена.\n\n" +
		"Начислите %d мес. вручную: POST /api/v1/payments/%d/extend"
)

func requisitesText(m models.PaymentMethod, p *models.Payment) string {
	return fmt.Sprintf("💳 Реквизиты для оплаты:\n\n"+
		"Метод: %s\n"+
		"Адрес: <code>%s</code>\n"+
		"Сумма: %s\n\n"+
		"⏱ Время на оплату: 30 минут\n"+
		"📝 ID платежа: %s\n\n"+
		"После оплаты нажмите кнопку ниже и прикрепите скриншот чека.",
		html.EscapeString(m.Name), html.EscapeString(m.Address),
		subscription.FormatPrice(p.Price, p.CurrencyCode), p.ID)
}

func receiptCaption(p *models.Payment, createdAt string) string {
	return fmt.Sprintf("🔔 Новый чек на проверку\n\n"+
		"👤 Пользователь: @%s\n"+
		"📦 Тариф: %s\n"+
		"💰 Сумма: %s\n"+
		"💳 Метод: %s\n"+
		"📝 ID платежа: %s\n"+
		"⏰ Создан: %s",
		p.Username, p.ProductName, subscription.FormatPrice(p.Price, p.CurrencyCode),
		p.MethodID, p.ID, createdAt)
}
