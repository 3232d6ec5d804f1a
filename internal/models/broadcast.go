package models

import "time"

// BroadcastType вид сообщения в очереди.
type BroadcastType string

const (
	BroadcastSingle BroadcastType = "single"
	BroadcastAll    BroadcastType = "broadcast"
)

// BroadcastFilter выбор получателей массовой рассылки.
type BroadcastFilter string

const (
	FilterAll                 BroadcastFilter = "all"
	FilterWithSubscription    BroadcastFilter = "withSubscription"
	FilterWithoutSubscription BroadcastFilter = "withoutSubscription"
	FilterUserIDs             BroadcastFilter = "userIds"
)

// BroadcastStatus статус обработки сообщения.
type BroadcastStatus string

const (
	BroadcastPending    BroadcastStatus = "pending"
	BroadcastProcessing BroadcastStatus = "processing"
	BroadcastCompleted  BroadcastStatus = "completed"
	BroadcastFailed     BroadcastStatus = "failed"
)

// BroadcastTarget адресаты сообщения.
type BroadcastTarget struct {
	Filter  BroadcastFilter `json:"filter,omitempty"`
	UserID  int64           `json:"userId,omitempty"`
	UserIDs []int64         `json:"userIds,omitempty"`
}

// BroadcastMessage сообщение, поставленное в очередь администратором.
type BroadcastMessage struct {
	ID          string          `json:"id"`
	Type        BroadcastType   `json:"type"`
	Target      BroadcastTarget `json:"target"`
	Text        string          `json:"message"`
	ParseMode   string          `json:"parseMode,omitempty"`
	Status      BroadcastStatus `json:"status"`
	Stats       *BroadcastStats `json:"stats,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
}

// BroadcastStats итог отправки.
type BroadcastStats struct {
	Total  int              `json:"total"`
	Sent   int              `json:"sent"`
	Failed int              `json:"failed"`
	Errors []BroadcastError `json:"errors,omitempty"`
}

// BroadcastError ошибка отправки одному получателю.
type BroadcastError struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error"`
}

// BroadcastJob тело сообщения в RabbitMQ.
type BroadcastJob struct {
	ID string `json:"id"`
}
