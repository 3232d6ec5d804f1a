package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
	"github.com/magabrotheeeer/channel-paywall/internal/services/subscription"
)

// Данные кнопок.
const (
	cbBackToMain         = "back_to_main"
	cbInfo               = "info"
	cbSelectSubscription = "select_subscription"
	cbCancelPayment      = "cancel_payment"

	cbTariffPrefix  = "tariff_"
	cbVariantPrefix = "variant_"
	cbMethodPrefix  = "payment_method_"
	cbReceiptPrefix = "upload_receipt_"
	cbRemindPrefix  = "remind_"
	cbConfirmPrefix = "admin_confirm_"
	cbRejectPrefix  = "admin_reject_"
)

func button(text, data string) tgmodels.InlineKeyboardButton {
	return tgmodels.InlineKeyboardButton{Text: text, CallbackData: data}
}

func mainMenuKeyboard() *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{button("💳 Выбрать подписку", cbSelectSubscription)},
			{button("ℹ️ Информация", cbInfo)},
		},
	}
}

func tariffsKeyboard(products []models.Product) *tgmodels.InlineKeyboardMarkup {
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(products)+1)
	for _, p := range products {
		text := p.Name
		if len(p.Variants) == 0 {
			text = fmt.Sprintf("%s - %s", p.Name, subscription.FormatPrice(p.Price, p.Currency()))
		}
		rows = append(rows, []tgmodels.InlineKeyboardButton{button(text, cbTariffPrefix+p.ID)})
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{button("◀️ Назад", cbBackToMain)})
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func variantsKeyboard(p models.Product) *tgmodels.InlineKeyboardMarkup {
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(p.Variants)+1)
	for _, v := range p.Variants {
		text := fmt.Sprintf("%s - %s", monthsLabel(v.Months), subscription.FormatPrice(v.Price, p.Currency()))
		rows = append(rows, []tgmodels.InlineKeyboardButton{
			button(text, fmt.Sprintf("%s%s_%d", cbVariantPrefix, p.ID, v.Months)),
		})
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{button("◀️ Назад", cbSelectSubscription)})
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func methodsKeyboard(methods []models.PaymentMethod) *tgmodels.InlineKeyboardMarkup {
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(methods)+1)
	for _, m := range methods {
		rows = append(rows, []tgmodels.InlineKeyboardButton{button(m.Name, cbMethodPrefix+m.ID)})
	}
	rows = append(rows, []tgmodels.InlineKeyboardButton{button("◀️ Назад", cbSelectSubscription)})
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func paymentConfirmationKeyboard(key int64) *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{button("✅ Я оплатил, прикрепить чек", cbReceiptPrefix+strconv.FormatInt(key, 10))},
			{button("❌ Отменить", cbCancelPayment)},
		},
	}
}

func adminConfirmationKeyboard(key int64) *tgmodels.InlineKeyboardMarkup {
	k := strconv.FormatInt(key, 10)
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{button("✅ Подтвердить", cbConfirmPrefix+k), button("❌ Отклонить", cbRejectPrefix+k)},
		},
	}
}

func reminderKeyboard(productID string) *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{button("🔔 Напомнить об открытии", cbRemindPrefix+productID)},
			{button("◀️ Назад", cbSelectSubscription)},
		},
	}
}

func backToMainKeyboard() *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{button("◀️ Главное меню", cbBackToMain)},
		},
	}
}

// parseKey достаёт ключ записи из данных кнопки с префиксом prefix.
func parseKey(data, prefix string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	key, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || key <= 0 {
		return 0, false
	}
	return key, true
}

// parseVariant разбирает variant_{productID}_{months}. Идентификатор тарифа может содержать "_".
func parseVariant(data string) (productID string, months int, ok bool) {
	raw, ok := strings.CutPrefix(data, cbVariantPrefix)
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndex(raw, "_")
	if i <= 0 {
		return "", 0, false
	}
	months, err := strconv.Atoi(raw[i+1:])
	if err != nil || months <= 0 {
		return "", 0, false
	}
	return raw[:i], months, true
}

func monthsLabel(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return fmt.Sprintf("%d месяц", n)
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return fmt.Sprintf("%d месяца", n)
	default:
		return fmt.Sprintf("%d месяцев", n)
	}
}
