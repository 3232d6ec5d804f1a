package subscription

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

const rejectedText = "❌ К сожалению, ваш платеж был отклонен.\n\n" +
	"Если вы считаете это ошибкой, пожалуйста, свяжитесь с поддержкой."

// FormatPrice форматирует сумму с валютой: 1000₽, 12.5$.
func FormatPrice(price float64, currency string) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), ".")
	return s + currency
}

func approvedText(p *models.Payment, link string) string {
	return "✅ Ваш платеж подтвержден!\n\n" +
		"📦 Тариф: " + p.ProductName + "\n" +
		"💰 Сумма: " + FormatPrice(p.Price, p.CurrencyCode) + "\n\n" +
		"🔗 Одноразовая ссылка на канал:\n" + link + "\n\n" +
		"⚠️ ВАЖНО:\n" +
		"• Ссылка автоматически отзовется через 30 минут\n" +
		"• После присоединения используйте команду /joined чтобы подтвердить вход\n"
}

func renewedText(p *models.Payment, end string) string {
	return "✅ Ваш платеж подтвержден!\n\n" +
		"📦 Тариф: " + p.ProductName + "\n" +
		"💰 Сумма: " + FormatPrice(p.Price, p.CurrencyCode) + "\n\n" +
		"🔄 Подписка продлена до " + end + ".\n" +
		"Вы остаетесь в канале, новая ссылка не нужна."
}
