package models

import "time"

// Reminder отложенное напоминание об открытии продаж тарифа.
type Reminder struct {
	Key         int64      `json:"key"`
	UserID      int64      `json:"user_id"`
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name"`
	FireAt      time.Time  `json:"fire_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Sent        bool       `json:"sent"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// RevocationTimer запись об отложенном отзыве пригласительной ссылки.
// Хранится в базе, поэтому переживает перезапуск процесса.
type RevocationTimer struct {
	Key        int64
	PaymentKey int64
	InviteLink string
	FireAt     time.Time
	CreatedAt  time.Time
	Done       bool
	DoneAt     *time.Time
}
