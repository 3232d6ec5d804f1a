// Package invite управляет одноразовыми пригласительными ссылками в канал:
// выпуск, отложенный автоматический отзыв и отзыв по подтверждению входа.
//
// Автоматический отзыв срабатывает только если в записи всё ещё хранится
// та ссылка, для которой заведён таймер. Поэтому устаревший таймер после
// ручного отзыва или перевыпуска ничего не делает.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

const (
	// LinkTTL срок действия ссылки в Telegram.
	LinkTTL = 24 * time.Hour
	// RevokeDelay задержка автоматического отзыва после выпуска.
	RevokeDelay = 30 * time.Minute
)

// Repository хранилище записей о платежах и таймеров отзыва.
type Repository interface {
	GetPayment(ctx context.Context, key int64) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error)
	UpdatePayment(ctx context.Context, key int64, upd models.PaymentUpdate) error
	ClearInviteLink(ctx context.Context, key int64, link string, at time.Time) (bool, error)
	CreateRevocationTimer(ctx context.Context, t *models.RevocationTimer) (int64, error)
	ListDueRevocationTimers(ctx context.Context, now time.Time) ([]*models.RevocationTimer, error)
	MarkRevocationTimerDone(ctx context.Context, key int64, at time.Time) error
}

// Gateway операции с каналом.
type Gateway interface {
	CreateInviteLink(ctx context.Context, name string, expireAt time.Time) (string, error)
	RevokeInviteLink(ctx context.Context, link string) error
	Membership(ctx context.Context, userID int64) (models.MembershipStatus, error)
}

// Notifier доставляет текстовые сообщения пользователям.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Service управляет ссылками.
type Service struct {
	repo     Repository
	gateway  Gateway
	notifier Notifier
	clock    civil.Clock
	log      *slog.Logger
}

// New создаёт Service.
func New(repo Repository, gateway Gateway, notifier Notifier, clock civil.Clock, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
		log:      log,
	}
}

// Issue выпускает ссылку для записи, сохраняет её и заводит таймер отзыва.
func (s *Service) Issue(ctx context.Context, p *models.Payment) (string, error) {
	const op = "invite.Issue"
	log := s.log.With(slog.String("op", op), sl.PaymentKey(p.Key), sl.UserID(p.UserID))

	now := s.clock.Now()
	link, err := s.gateway.CreateInviteLink(ctx, "Подписка "+p.ProductName, now.Add(LinkTTL))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.UpdatePayment(ctx, p.Key, models.PaymentUpdate{At: now, InviteLink: &link}); err != nil {
		// Ссылка, которую не удалось сохранить, не должна остаться рабочей.
		if rerr := s.gateway.RevokeInviteLink(ctx, link); rerr != nil {
			log.Error("failed to revoke unsaved invite link", sl.Err(rerr))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	p.InviteLink = &link
	p.InviteLinkCreatedAt = &now

	_, err = s.repo.CreateRevocationTimer(ctx, &models.RevocationTimer{
		PaymentKey: p.Key,
		InviteLink: link,
		FireAt:     now.Add(RevokeDelay),
		CreatedAt:  now,
	})
	if err != nil {
		// Ссылка уже у записи, пользователь может войти; отзыв остаётся за /joined.
		log.Error("failed to arm revocation timer", sl.Err(err))
	}

	log.Info("invite link issued")
	return link, nil
}

// AutoRevoke отзывает ссылку link записи paymentKey, если она всё ещё сохранена в записи.
// Возвращает true, если ссылку отозвал именно этот вызов.
func (s *Service) AutoRevoke(ctx context.Context, paymentKey int64, link string) (bool, error) {
	const op = "invite.AutoRevoke"
	log := s.log.With(slog.String("op", op), sl.PaymentKey(paymentKey))

	p, err := s.repo.GetPayment(ctx, paymentKey)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if p.InviteLink == nil || *p.InviteLink != link {
		log.Info("invite link already revoked")
		return false, nil
	}

	if err := s.gateway.RevokeInviteLink(ctx, link); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	cleared, err := s.repo.ClearInviteLink(ctx, paymentKey, link, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !cleared {
		log.Info("invite link cleared concurrently")
		return false, nil
	}

	log.Info("invite link revoked by timer", sl.UserID(p.UserID))
	if err := s.notifier.Send(ctx, p.UserID, autoRevokedText); err != nil {
		log.Warn("failed to notify user", sl.Err(err))
	}
	return true, nil
}

// FireDue обрабатывает наступившие таймеры отзыва. Таймер, обработка которого
// завершилась ошибкой, остаётся активным и будет повторён на следующем проходе.
// Возвращает число обработанных и число неудачных таймеров.
func (s *Service) FireDue(ctx context.Context) (fired, failed int, err error) {
	const op = "invite.FireDue"

	now := s.clock.Now()
	timers, err := s.repo.ListDueRevocationTimers(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, t := range timers {
		if _, err := s.AutoRevoke(ctx, t.PaymentKey, t.InviteLink); err != nil {
			s.log.Error("failed to revoke invite link", sl.PaymentKey(t.PaymentKey), sl.Err(err))
			failed++
			continue
		}
		if err := s.repo.MarkRevocationTimerDone(ctx, t.Key, now); err != nil {
			s.log.Error("failed to mark revocation timer", slog.Int64("timer_key", t.Key), sl.Err(err))
			failed++
			continue
		}
		fired++
	}
	return fired, failed, nil
}

// RevokeManual отзывает ссылку пользователя после подтверждения, что он уже в канале.
func (s *Service) RevokeManual(ctx context.Context, userID int64) error {
	const op = "invite.RevokeManual"

	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var p *models.Payment
	for _, candidate := range payments {
		if candidate.Status == models.StatusPayed && candidate.InviteLink != nil {
			p = candidate
			break
		}
	}
	if p == nil {
		return fmt.Errorf("%s: %w", op, models.ErrNoActiveLink)
	}

	status, err := s.gateway.Membership(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrMembershipUnknown, err)
	}
	if !status.IsMember() {
		return fmt.Errorf("%s: %w", op, models.ErrNotMember)
	}

	link := *p.InviteLink
	if err := s.gateway.RevokeInviteLink(ctx, link); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.ClearInviteLink(ctx, p.Key, link, s.clock.Now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("invite link revoked by user", sl.PaymentKey(p.Key), sl.UserID(userID))
	return nil
}

// Diagnose возвращает подсказку администратору по ошибке выпуска ссылки.
func Diagnose(err error) string {
	msg := "❌ Ошибка создания ссылки на канал.\n\n"
	if err == nil {
		return msg
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "chat not found"):
		return msg + "Канал не найден. Проверьте:\n" +
			"1. TELEGRAM_CHANNEL_ID указан правильно\n" +
			"2. ID должен начинаться с -100\n" +
			"3. Бот добавлен в канал\n\n" +
			"Используйте /check_channel для диагностики"
	case strings.Contains(text, "not enough rights"):
		return msg + "У бота недостаточно прав.\n" +
			"Добавьте бота как администратора с правом \"Invite users via link\""
	default:
		return msg + err.Error()
	}
}

const autoRevokedText = "⏰ Ваша пригласительная ссылка была автоматически отозвана через 30 минут для безопасности.\n\n" +
	"Если вы уже присоединились к каналу - всё в порядке!\n" +
	"Если нет - свяжитесь с поддержкой."
