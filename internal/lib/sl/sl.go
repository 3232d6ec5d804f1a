// Package sl содержит вспомогательные атрибуты для логгера slog.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
//	log.Error("failed to send notice", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// UserID атрибут идентификатора пользователя Telegram.
func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

// PaymentKey атрибут ключа записи о платеже.
func PaymentKey(key int64) slog.Attr {
	return slog.Int64("payment_key", key)
}
