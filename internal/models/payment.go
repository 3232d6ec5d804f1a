// Package models содержит доменные структуры: платежи, напоминания,
// таймеры отзыва ссылок, пользователей бота и сообщения рассылки.
package models

import "time"

// PaymentStatus статус записи о платеже.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPayed     PaymentStatus = "payed"
	StatusRejected  PaymentStatus = "rejected"
	StatusCancelled PaymentStatus = "cancelled"
	StatusExpired   PaymentStatus = "expired"
)

// DecisionWindow срок, отведённый пользователю на оплату после создания записи.
const DecisionWindow = 30 * time.Minute

// Payment представляет одну попытку покупки или продления подписки.
// SubscriptionEnd появляется только после подтверждения оплаты,
// InviteLink присутствует только пока ссылка не отозвана.
type Payment struct {
	Key          int64         `json:"key"`
	ID           string        `json:"id"`
	ProductID    string        `json:"product_id"`
	ProductName  string        `json:"product_name"`
	Months       *int          `json:"months,omitempty"`
	Price        float64       `json:"price"`
	CurrencyCode string        `json:"currency_code"`
	MethodID     string        `json:"method_id"`
	UserID       int64         `json:"user_id"`
	Username     string        `json:"username"`
	Status       PaymentStatus `json:"status"`

	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ExpiresAt           time.Time  `json:"expires_at"`
	SubscriptionEnd     *time.Time `json:"subscription_end,omitempty"`
	InviteLink          *string    `json:"invite_link,omitempty"`
	InviteLinkCreatedAt *time.Time `json:"invite_link_created_at,omitempty"`

	NotificationSent2Days    bool       `json:"notification_sent_2days"`
	NotificationSent2DaysAt  *time.Time `json:"notification_sent_2days_at,omitempty"`
	NotificationSent8Hours   bool       `json:"notification_sent_8hours"`
	NotificationSent8HoursAt *time.Time `json:"notification_sent_8hours_at,omitempty"`

	ExtendedPaymentKey *int64  `json:"extended_payment_key,omitempty"`
	ReceiptRef         *string `json:"receipt_ref,omitempty"`
}

// DurationMonths возвращает длительность оплаченного периода.
// У старых тарифов без вариантов длительность равна одному месяцу.
func (p *Payment) DurationMonths() int {
	if p.Months == nil || *p.Months <= 0 {
		return 1
	}
	return *p.Months
}

// HasActiveWindow сообщает, действует ли подписка в момент now.
func (p *Payment) HasActiveWindow(now time.Time) bool {
	return p.Status == StatusPayed && p.SubscriptionEnd != nil && p.SubscriptionEnd.After(now)
}

// PaymentUpdate частичное обновление записи. Nil-поля не изменяются.
// At используется как updated_at и как отметка времени для флагов уведомлений
// и созданной ссылки.
type PaymentUpdate struct {
	At                     time.Time
	Status                 *PaymentStatus
	SubscriptionEnd        *time.Time
	InviteLink             *string
	ReceiptRef             *string
	ExtendedPaymentKey     *int64
	NotificationSent2Days  *bool
	NotificationSent8Hours *bool
}
