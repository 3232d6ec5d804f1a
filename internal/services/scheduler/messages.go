package scheduler

import (
	"fmt"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

const expiredText = "⏰ Срок вашей подписки истек.\n\n" +
	"Доступ к каналу закрыт. Чтобы вернуться, оформите подписку заново через /start."

func twoDaysText(p *models.Payment, end string) string {
	return fmt.Sprintf("⏳ Ваша подписка «%s» закончится через 2 дня (%s).\n\n"+
		"Продлите ее заранее, чтобы не потерять доступ к каналу: /start", p.ProductName, end)
}

func eightHoursText(p *models.Payment, end string) string {
	return fmt.Sprintf("⚠️ Ваша подписка «%s» закончится через 8 часов (%s).\n\n"+
		"Продлите ее сейчас: /start", p.ProductName, end)
}

func reminderText(r *models.Reminder) string {
	return fmt.Sprintf("🔔 Напоминание!\n\nСкоро откроется продажа тарифа «%s».\n"+
		"Загляните в бот: /start", r.ProductName)
}

func timeoutText(p *models.Payment) string {
	return fmt.Sprintf("⌛ Время на оплату истекло.\n\n📝 ID платежа: %s\n"+
		"Если вы все еще хотите оформить подписку, начните заново: /start", p.ID)
}
