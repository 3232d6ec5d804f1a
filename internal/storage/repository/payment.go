package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

const paymentColumns = `id, public_id, product_id, product_name, months, price, currency_code, method_id,
	user_id, username, status, created_at, updated_at, expires_at, subscription_end,
	invite_link, invite_link_created_at, notification_sent_2days, notification_sent_2days_at,
	notification_sent_8hours, notification_sent_8hours_at, extended_payment_id, receipt_ref`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p               models.Payment
		status          string
		months          sql.NullInt32
		subscriptionEnd sql.NullTime
		inviteLink      sql.NullString
		linkCreatedAt   sql.NullTime
		sent2DaysAt     sql.NullTime
		sent8HoursAt    sql.NullTime
		extendedKey     sql.NullInt64
		receiptRef      sql.NullString
	)
	err := row.Scan(
		&p.Key, &p.ID, &p.ProductID, &p.ProductName, &months, &p.Price, &p.CurrencyCode, &p.MethodID,
		&p.UserID, &p.Username, &status, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt, &subscriptionEnd,
		&inviteLink, &linkCreatedAt, &p.NotificationSent2Days, &sent2DaysAt,
		&p.NotificationSent8Hours, &sent8HoursAt, &extendedKey, &receiptRef,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if months.Valid {
		m := int(months.Int32)
		p.Months = &m
	}
	p.SubscriptionEnd = nullTime(subscriptionEnd)
	p.InviteLink = nullString(inviteLink)
	p.InviteLinkCreatedAt = nullTime(linkCreatedAt)
	p.NotificationSent2DaysAt = nullTime(sent2DaysAt)
	p.NotificationSent8HoursAt = nullTime(sent8HoursAt)
	p.ReceiptRef = nullString(receiptRef)
	if extendedKey.Valid {
		k := extendedKey.Int64
		p.ExtendedPaymentKey = &k
	}
	return &p, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// CreatePayment сохраняет новую запись и возвращает её ключ.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO payments (public_id, product_id, product_name, months, price, currency_code,
			  method_id, user_id, username, status, created_at, updated_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  RETURNING id`
	var months sql.NullInt32
	if p.Months != nil {
		months = sql.NullInt32{Int32: int32(*p.Months), Valid: true}
	}
	var key int64
	err := s.DB.QueryRowContext(ctx, query,
		p.ID, p.ProductID, p.ProductName, months, p.Price, p.CurrencyCode,
		p.MethodID, p.UserID, p.Username, string(p.Status), p.CreatedAt, p.UpdatedAt, p.ExpiresAt,
	).Scan(&key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

// GetPayment возвращает запись по ключу или models.ErrNotFound.
func (s *Storage) GetPayment(ctx context.Context, key int64) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPaymentsByUser возвращает все записи пользователя, новые первыми.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return s.queryPayments(ctx, op, query, userID)
}

// ListPaymentsByStatus возвращает все записи в статусе status.
func (s *Storage) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByStatus"
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 ORDER BY id`
	return s.queryPayments(ctx, op, query, string(status))
}

func (s *Storage) queryPayments(ctx context.Context, op, query string, args ...any) ([]*models.Payment, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func paymentSet(upd models.PaymentUpdate) *setBuilder {
	b := &setBuilder{}
	b.add("updated_at", upd.At)
	if upd.Status != nil {
		b.add("status", string(*upd.Status))
	}
	if upd.SubscriptionEnd != nil {
		b.add("subscription_end", *upd.SubscriptionEnd)
	}
	if upd.InviteLink != nil {
		b.add("invite_link", *upd.InviteLink)
		b.add("invite_link_created_at", upd.At)
	}
	if upd.ReceiptRef != nil {
		b.add("receipt_ref", *upd.ReceiptRef)
	}
	if upd.ExtendedPaymentKey != nil {
		b.add("extended_payment_id", *upd.ExtendedPaymentKey)
	}
	if upd.NotificationSent2Days != nil {
		b.add("notification_sent_2days", *upd.NotificationSent2Days)
		b.add("notification_sent_2days_at", flagTime(*upd.NotificationSent2Days, upd.At))
	}
	if upd.NotificationSent8Hours != nil {
		b.add("notification_sent_8hours", *upd.NotificationSent8Hours)
		b.add("notification_sent_8hours_at", flagTime(*upd.NotificationSent8Hours, upd.At))
	}
	return b
}

func flagTime(set bool, at time.Time) sql.NullTime {
	if !set {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: at, Valid: true}
}

// UpdatePayment применяет частичное обновление одним запросом.
func (s *Storage) UpdatePayment(ctx context.Context, key int64, upd models.PaymentUpdate) error {
	const op = "storage.UpdatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	b := paymentSet(upd)
	query := `UPDATE payments SET ` + b.clause() + ` WHERE id = ` + b.next(key)
	res, err := s.DB.ExecContext(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// TransitionPayment переводит запись из статуса from в статус to вместе с upd.
// Возвращает false, если запись уже не в статусе from.
func (s *Storage) TransitionPayment(ctx context.Context, key int64, from, to models.PaymentStatus, upd models.PaymentUpdate) (bool, error) {
	const op = "storage.TransitionPayment"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	upd.Status = &to
	b := paymentSet(upd)
	query := `UPDATE payments SET ` + b.clause() +
		` WHERE id = ` + b.next(key) + ` AND status = ` + b.next(string(from))
	res, err := s.DB.ExecContext(ctx, query, b.args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ClearInviteLink стирает ссылку, только если в записи всё ещё хранится link.
// Возвращает false, если ссылку уже стёр кто-то другой.
func (s *Storage) ClearInviteLink(ctx context.Context, key int64, link string, at time.Time) (bool, error) {
	const op = "storage.ClearInviteLink"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE payments SET invite_link = NULL, invite_link_created_at = NULL, updated_at = $1
			  WHERE id = $2 AND invite_link = $3`
	res, err := s.DB.ExecContext(ctx, query, at, key, link)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
