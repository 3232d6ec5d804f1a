// Package subscription реализует жизненный цикл записи о платеже:
// создание, решение администратора, продление и истечение подписки.
//
// Переходы: pending -> payed | rejected | cancelled, payed -> expired.
// Каждый переход выполняется условным обновлением по текущему статусу,
// поэтому повторное или конкурентное решение по записи отклоняется
// с models.ErrDecisionConflict и не вызывает побочных эффектов дважды.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/month"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/metrics"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// Repository хранилище записей о платежах.
type Repository interface {
	CreatePayment(ctx context.Context, p *models.Payment) (int64, error)
	GetPayment(ctx context.Context, key int64) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error)
	ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
	UpdatePayment(ctx context.Context, key int64, upd models.PaymentUpdate) error
	TransitionPayment(ctx context.Context, key int64, from, to models.PaymentStatus, upd models.PaymentUpdate) (bool, error)
}

// Issuer выпускает пригласительную ссылку для оплаченной записи.
type Issuer interface {
	Issue(ctx context.Context, p *models.Payment) (string, error)
}

// Notifier доставляет текстовые сообщения пользователям.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Clock часы гражданского пояса.
type Clock interface {
	Now() time.Time
	Format(t time.Time) string
}

// ApprovalKind путь, по которому прошло подтверждение оплаты.
type ApprovalKind int

const (
	// ApprovalIssued первая покупка: выдана новая ссылка.
	ApprovalIssued ApprovalKind = iota + 1
	// ApprovalRenewed продление: ссылка не выдавалась, продлена активная подписка.
	ApprovalRenewed
)

func (k ApprovalKind) String() string {
	switch k {
	case ApprovalIssued:
		return "issued"
	case ApprovalRenewed:
		return "renewed"
	default:
		return "unknown"
	}
}

// ApprovalResult итог подтверждения оплаты.
type ApprovalResult struct {
	Kind       ApprovalKind
	Payment    *models.Payment
	Extended   *models.Payment
	InviteLink string
}

// RenewalError продление подтверждено, но действующая подписка не продлена.
// Запись уже payed, повторное подтверждение вернёт конфликт, поэтому
// начислить Months записи ActiveKey нужно через Extend.
type RenewalError struct {
	PaymentKey int64
	ActiveKey  int64
	Months     int
	Err        error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("%s: payment %d, extend payment %d by %d months: %v",
		models.ErrRenewalNotCredited, e.PaymentKey, e.ActiveKey, e.Months, e.Err)
}

func (e *RenewalError) Unwrap() []error {
	return []error{models.ErrRenewalNotCredited, e.Err}
}

// CreateRequest параметры новой попытки покупки.
// Months = 0 означает тариф без вариантов длительности.
type CreateRequest struct {
	Product  models.Product
	Months   int
	Method   models.PaymentMethod
	UserID   int64
	Username string
}

// Service реализует переходы состояний записи о платеже.
type Service struct {
	repo     Repository
	issuer   Issuer
	notifier Notifier
	clock    Clock
	log      *slog.Logger
	newID    func() (string, error)
}

// New создаёт Service.
func New(repo Repository, issuer Issuer, notifier Notifier, clock Clock, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		issuer:   issuer,
		notifier: notifier,
		clock:    clock,
		log:      log,
		newID:    func() (string, error) { return gonanoid.New(8) },
	}
}

// Create создаёт запись в статусе pending со сроком на оплату models.DecisionWindow.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Payment, error) {
	const op = "subscription.Create"

	price := req.Product.Price
	var months *int
	if req.Months > 0 {
		v, ok := req.Product.Variant(req.Months)
		if !ok {
			return nil, fmt.Errorf("%s: variant %d months: %w", op, req.Months, models.ErrNotFound)
		}
		price = v.Price
		m := v.Months
		months = &m
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()
	p := &models.Payment{
		ID:           id,
		ProductID:    req.Product.ID,
		ProductName:  req.Product.Name,
		Months:       months,
		Price:        price,
		CurrencyCode: req.Product.Currency(),
		MethodID:     req.Method.ID,
		UserID:       req.UserID,
		Username:     req.Username,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(models.DecisionWindow),
	}
	key, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Key = key
	s.log.Info("payment created", sl.PaymentKey(key), sl.UserID(req.UserID), slog.String("product", req.Product.ID))
	return p, nil
}

// Get возвращает запись по ключу.
func (s *Service) Get(ctx context.Context, key int64) (*models.Payment, error) {
	const op = "subscription.Get"
	p, err := s.repo.GetPayment(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListByUser возвращает записи пользователя, новые первыми.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	const op = "subscription.ListByUser"
	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

// AttachReceipt сохраняет ссылку на чек. Статус остаётся pending,
// повторная загрузка чека заменяет ссылку.
func (s *Service) AttachReceipt(ctx context.Context, key int64, receiptRef string) (*models.Payment, error) {
	const op = "subscription.AttachReceipt"

	p, err := s.pending(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()
	if err := s.repo.UpdatePayment(ctx, key, models.PaymentUpdate{At: now, ReceiptRef: &receiptRef}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.ReceiptRef = &receiptRef
	p.UpdatedAt = now
	return p, nil
}

// Approve подтверждает оплату.
//
// Если у пользователя уже есть действующая подписка, запись помечается payed,
// связывается с ней, а действующая подписка продлевается; новая ссылка не выдаётся.
// Иначе запись получает дату окончания и для неё выпускается ссылка.
// Ошибка выпуска ссылки не откатывает статус payed и возвращается как
// models.ErrInviteIssue вместе с результатом.
func (s *Service) Approve(ctx context.Context, key int64) (*ApprovalResult, error) {
	const op = "subscription.Approve"
	log := s.log.With(slog.String("op", op), sl.PaymentKey(key))

	p, err := s.pending(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()

	active, err := s.activeSubscription(ctx, p.UserID, p.Key, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if active != nil {
		return s.renew(ctx, p, active, now)
	}

	end := month.Add(now, p.DurationMonths())
	ok, err := s.repo.TransitionPayment(ctx, key, models.StatusPending, models.StatusPayed,
		models.PaymentUpdate{At: now, SubscriptionEnd: &end})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrDecisionConflict)
	}
	p.Status = models.StatusPayed
	p.SubscriptionEnd = &end
	p.UpdatedAt = now
	log.Info("payment approved", slog.Time("subscription_end", end))
	metrics.Decisions.WithLabelValues("approved").Inc()

	result := &ApprovalResult{Kind: ApprovalIssued, Payment: p}
	link, err := s.issuer.Issue(ctx, p)
	if err != nil {
		log.Error("failed to issue invite link", sl.Err(err))
		return result, fmt.Errorf("%s: %w: %w", op, models.ErrInviteIssue, err)
	}
	p.InviteLink = &link
	result.InviteLink = link

	s.notify(ctx, p.UserID, approvedText(p, link))
	return result, nil
}

func (s *Service) renew(ctx context.Context, p, active *models.Payment, now time.Time) (*ApprovalResult, error) {
	const op = "subscription.renew"

	ok, err := s.repo.TransitionPayment(ctx, p.Key, models.StatusPending, models.StatusPayed,
		models.PaymentUpdate{At: now, ExtendedPaymentKey: &active.Key})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrDecisionConflict)
	}
	p.Status = models.StatusPayed
	p.ExtendedPaymentKey = &active.Key
	p.UpdatedAt = now

	result := &ApprovalResult{Kind: ApprovalRenewed, Payment: p, Extended: active}
	newEnd, err := s.extend(ctx, active, p.DurationMonths(), now)
	if err != nil {
		s.log.Error("renewal approved but active subscription not extended",
			sl.PaymentKey(p.Key), slog.Int64("extended_payment_key", active.Key), sl.Err(err))
		return result, fmt.Errorf("%s: %w", op, &RenewalError{
			PaymentKey: p.Key,
			ActiveKey:  active.Key,
			Months:     p.DurationMonths(),
			Err:        err,
		})
	}
	s.log.Info("subscription renewed",
		sl.PaymentKey(p.Key),
		slog.Int64("extended_payment_key", active.Key),
		slog.Time("subscription_end", newEnd),
	)

	metrics.Decisions.WithLabelValues("renewed").Inc()

	s.notify(ctx, p.UserID, renewedText(p, s.clock.Format(newEnd)))
	return result, nil
}

// Extend продлевает подписку записи key на months месяцев.
func (s *Service) Extend(ctx context.Context, key int64, months int) (time.Time, error) {
	const op = "subscription.Extend"

	p, err := s.repo.GetPayment(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if p.Status != models.StatusPayed {
		return time.Time{}, fmt.Errorf("%s: %w", op, models.ErrDecisionConflict)
	}
	end, err := s.extend(ctx, p, months, s.clock.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return end, nil
}

// extend сдвигает дату окончания от max(end, now) и сбрасывает флаги уведомлений.
// Ссылку и таймер её отзыва не трогает.
func (s *Service) extend(ctx context.Context, p *models.Payment, months int, now time.Time) (time.Time, error) {
	base := now
	if p.SubscriptionEnd != nil {
		base = *p.SubscriptionEnd
	}
	newEnd := month.Extend(base, now, months)

	reset := false
	err := s.repo.UpdatePayment(ctx, p.Key, models.PaymentUpdate{
		At:                     now,
		SubscriptionEnd:        &newEnd,
		NotificationSent2Days:  &reset,
		NotificationSent8Hours: &reset,
	})
	if err != nil {
		return time.Time{}, err
	}
	p.SubscriptionEnd = &newEnd
	p.NotificationSent2Days = false
	p.NotificationSent2DaysAt = nil
	p.NotificationSent8Hours = false
	p.NotificationSent8HoursAt = nil
	p.UpdatedAt = now
	return newEnd, nil
}

// ReissueInvite выпускает новую ссылку для оплаченной записи без ссылки,
// например после ошибки выпуска при подтверждении.
func (s *Service) ReissueInvite(ctx context.Context, key int64) (string, error) {
	const op = "subscription.ReissueInvite"

	p, err := s.repo.GetPayment(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !p.HasActiveWindow(s.clock.Now()) || p.InviteLink != nil {
		return "", fmt.Errorf("%s: %w", op, models.ErrDecisionConflict)
	}
	link, err := s.issuer.Issue(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, models.ErrInviteIssue, err)
	}
	s.notify(ctx, p.UserID, approvedText(p, link))
	return link, nil
}

// Reject отклоняет оплату и уведомляет пользователя.
func (s *Service) Reject(ctx context.Context, key int64) (*models.Payment, error) {
	const op = "subscription.Reject"

	p, err := s.transition(ctx, key, models.StatusPending, models.StatusRejected)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment rejected", sl.PaymentKey(key), sl.UserID(p.UserID))
	metrics.Decisions.WithLabelValues("rejected").Inc()
	s.notify(ctx, p.UserID, rejectedText)
	return p, nil
}

// Cancel отменяет ожидающую оплату по просьбе пользователя или по таймауту.
func (s *Service) Cancel(ctx context.Context, key int64) (*models.Payment, error) {
	const op = "subscription.Cancel"

	p, err := s.transition(ctx, key, models.StatusPending, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Expire помечает оплаченную запись истёкшей.
func (s *Service) Expire(ctx context.Context, key int64) (*models.Payment, error) {
	const op = "subscription.Expire"

	p, err := s.transition(ctx, key, models.StatusPayed, models.StatusExpired)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ActiveSubscription возвращает действующую подписку пользователя или nil.
func (s *Service) ActiveSubscription(ctx context.Context, userID int64) (*models.Payment, error) {
	const op = "subscription.ActiveSubscription"
	p, err := s.activeSubscription(ctx, userID, 0, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// activeSubscription ищет запись payed с будущей датой окончания, кроме exclude.
// Если таких несколько, берётся заканчивающаяся позже всех.
func (s *Service) activeSubscription(ctx context.Context, userID, exclude int64, now time.Time) (*models.Payment, error) {
	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var active *models.Payment
	for _, p := range payments {
		if p.Key == exclude || !p.HasActiveWindow(now) {
			continue
		}
		if active == nil || p.SubscriptionEnd.After(*active.SubscriptionEnd) {
			active = p
		}
	}
	return active, nil
}

func (s *Service) pending(ctx context.Context, key int64) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPending {
		return nil, fmt.Errorf("status %s: %w", p.Status, models.ErrDecisionConflict)
	}
	return p, nil
}

func (s *Service) transition(ctx context.Context, key int64, from, to models.PaymentStatus) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, key)
	if err != nil {
		return nil, err
	}
	if p.Status != from {
		return nil, fmt.Errorf("status %s: %w", p.Status, models.ErrDecisionConflict)
	}
	now := s.clock.Now()
	ok, err := s.repo.TransitionPayment(ctx, key, from, to, models.PaymentUpdate{At: now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrDecisionConflict
	}
	p.Status = to
	p.UpdatedAt = now
	return p, nil
}

func (s *Service) notify(ctx context.Context, userID int64, text string) {
	if err := s.notifier.Send(ctx, userID, text); err != nil {
		s.log.Warn("failed to notify user", sl.UserID(userID), sl.Err(err))
	}
}
