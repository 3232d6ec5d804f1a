// Package scheduler запускает периодические сверки: истёкшие подписки,
// уведомления о продлении, напоминания, таймаут оплаты, отзыв ссылок и очистку очереди.
//
// Ошибка по одной записи логируется и не останавливает обработку остальных.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/sl"
	"github.com/magabrotheeeer/channel-paywall/internal/metrics"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

// PaymentTimeout время, после которого неоплаченная заявка отменяется.
const PaymentTimeout = time.Hour

// Полосы уведомлений о продлении: (8ч, 48ч] и (0, 8ч].
const (
	noticeTwoDays    = 48 * time.Hour
	noticeEightHours = 8 * time.Hour
)

// Названия сверок в логах и метриках.
const (
	sweepExpired      = "expired_subscriptions"
	sweepRenewal      = "renewal_notices"
	sweepReminders    = "reminders"
	sweepTimeout      = "payment_timeout"
	sweepRevocation   = "revocation_timers"
	sweepQueueCleanup = "queue_cleanup"
)

// PaymentRepository выборка и частичное обновление записей.
type PaymentRepository interface {
	ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
	UpdatePayment(ctx context.Context, key int64, upd models.PaymentUpdate) error
}

// Subscriptions переходы статусов.
type Subscriptions interface {
	Expire(ctx context.Context, key int64) (*models.Payment, error)
	Cancel(ctx context.Context, key int64) (*models.Payment, error)
}

// Channel операции с участниками канала.
type Channel interface {
	Membership(ctx context.Context, userID int64) (models.MembershipStatus, error)
	RemoveMember(ctx context.Context, userID int64) error
}

// Notifier доставляет текст пользователю.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// Reminders наступившие напоминания.
type Reminders interface {
	Due(ctx context.Context) ([]*models.Reminder, error)
	MarkSent(ctx context.Context, key int64) error
}

// Invites срабатывание таймеров отзыва.
type Invites interface {
	FireDue(ctx context.Context) (fired, failed int, err error)
}

// Queue очистка очереди рассылок.
type Queue interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Clock текущее время и его представление для пользователя.
type Clock interface {
	Now() time.Time
	Format(t time.Time) string
}

// Deps зависимости планировщика.
type Deps struct {
	Payments      PaymentRepository
	Subscriptions Subscriptions
	Channel       Channel
	Notifier      Notifier
	Reminders     Reminders
	Invites       Invites
	Queue         Queue
	Clock         Clock
}

// SchedulerService запускает сверки по расписанию.
type SchedulerService struct {
	Deps
	intervals config.Scheduler
	log       *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(deps Deps, intervals config.Scheduler, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		Deps:      deps,
		intervals: intervals,
		log:       log,
	}
}

// Start запускает каждую сверку в своей горутине и ждёт отмены ctx.
func (s *SchedulerService) Start(ctx context.Context) {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{sweepExpired, s.intervals.ExpiredSubscriptions, s.runExpiredSubscriptions},
		{sweepRenewal, s.intervals.RenewalNotices, s.runRenewalNotices},
		{sweepReminders, s.intervals.Reminders, s.runReminders},
		{sweepTimeout, s.intervals.PaymentTimeout, s.runPaymentTimeout},
		{sweepRevocation, s.intervals.RevocationTimers, s.runRevocationTimers},
		{sweepQueueCleanup, s.intervals.QueueCleanup, s.runQueueCleanup},
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, job.name, job.interval, job.run)
		}()
	}
	wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *SchedulerService) every(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	if interval <= 0 {
		s.log.Warn("sweep disabled", slog.String("sweep", name))
		return
	}
	s.log.Info("sweep started", slog.String("sweep", name), slog.Duration("interval", interval))

	run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// runExpiredSubscriptions убирает из канала пользователей с истёкшей подпиской.
func (s *SchedulerService) runExpiredSubscriptions(ctx context.Context) {
	log := s.log.With(slog.String("sweep", sweepExpired))
	metrics.SweepRuns.WithLabelValues(sweepExpired).Inc()

	payments, err := s.Payments.ListPaymentsByStatus(ctx, models.StatusPayed)
	if err != nil {
		log.Error("failed to list payed records", sl.Err(err))
		return
	}

	now := s.Clock.Now()
	// Пользователь с другой действующей подпиской остаётся в канале.
	covered := make(map[int64]bool)
	for _, p := range payments {
		if p.HasActiveWindow(now) {
			covered[p.UserID] = true
		}
	}

	for _, p := range payments {
		if p.SubscriptionEnd == nil || !p.SubscriptionEnd.Before(now) {
			continue
		}
		plog := log.With(sl.PaymentKey(p.Key), sl.UserID(p.UserID))

		if covered[p.UserID] {
			if _, err := s.Subscriptions.Expire(ctx, p.Key); err != nil {
				plog.Error("failed to expire record", sl.Err(err))
				metrics.Record(sweepExpired, metrics.ResultFailed)
				continue
			}
			plog.Info("record expired, user keeps access by another subscription")
			metrics.Record(sweepExpired, metrics.ResultSkipped)
			continue
		}

		status, err := s.Channel.Membership(ctx, p.UserID)
		if err != nil {
			plog.Warn("membership lookup failed, removing anyway", sl.Err(err))
		}
		if err != nil || status.IsMember() {
			if err := s.Channel.RemoveMember(ctx, p.UserID); err != nil {
				plog.Error("failed to remove member", sl.Err(err))
				metrics.Record(sweepExpired, metrics.ResultFailed)
				continue
			}
		}

		if _, err := s.Subscriptions.Expire(ctx, p.Key); err != nil {
			plog.Error("failed to expire record", sl.Err(err))
			metrics.Record(sweepExpired, metrics.ResultFailed)
			continue
		}
		if err := s.Notifier.Send(ctx, p.UserID, expiredText); err != nil {
			plog.Warn("failed to notify about expiry", sl.Err(err))
		}
		plog.Info("subscription expired")
		metrics.Record(sweepExpired, metrics.ResultOK)
	}
}

// runRenewalNotices предупреждает о скором окончании подписки.
func (s *SchedulerService) runRenewalNotices(ctx context.Context) {
	log := s.log.With(slog.String("sweep", sweepRenewal))
	metrics.SweepRuns.WithLabelValues(sweepRenewal).Inc()

	payments, err := s.Payments.ListPaymentsByStatus(ctx, models.StatusPayed)
	if err != nil {
		log.Error("failed to list payed records", sl.Err(err))
		return
	}

	now := s.Clock.Now()
	for _, p := range payments {
		if p.SubscriptionEnd == nil {
			continue
		}
		left := p.SubscriptionEnd.Sub(now)

		var (
			text string
			upd  = models.PaymentUpdate{At: now}
			flag = true
		)
		switch {
		case left > noticeEightHours && left <= noticeTwoDays && !p.NotificationSent2Days:
			text = twoDaysText(p, s.Clock.Format(*p.SubscriptionEnd))
			upd.NotificationSent2Days = &flag
		case left > 0 && left <= noticeEightHours && !p.NotificationSent8Hours:
			text = eightHoursText(p, s.Clock.Format(*p.SubscriptionEnd))
			upd.NotificationSent8Hours = &flag
		default:
			continue
		}

		plog := log.With(sl.PaymentKey(p.Key), sl.UserID(p.UserID))
		if err := s.Notifier.Send(ctx, p.UserID, text); err != nil {
			plog.Warn("failed to send renewal notice", sl.Err(err))
			metrics.Record(sweepRenewal, metrics.ResultFailed)
			continue
		}
		if err := s.Payments.UpdatePayment(ctx, p.Key, upd); err != nil {
			plog.Error("failed to mark renewal notice", sl.Err(err))
			metrics.Record(sweepRenewal, metrics.ResultFailed)
			continue
		}
		metrics.Record(sweepRenewal, metrics.ResultOK)
	}
}

// runReminders отправляет наступившие напоминания об открытии продаж.
func (s *SchedulerService) runReminders(ctx context.Context) {
	log := s.log.With(slog.String("sweep", sweepReminders))
	metrics.SweepRuns.WithLabelValues(sweepReminders).Inc()

	reminders, err := s.Reminders.Due(ctx)
	if err != nil {
		log.Error("failed to list due reminders", sl.Err(err))
		return
	}
	for _, r := range reminders {
		rlog := log.With(slog.Int64("reminder", r.Key), sl.UserID(r.UserID))
		if err := s.Notifier.Send(ctx, r.UserID, reminderText(r)); err != nil {
			rlog.Warn("failed to send reminder", sl.Err(err))
			metrics.Record(sweepReminders, metrics.ResultFailed)
			continue
		}
		if err := s.Reminders.MarkSent(ctx, r.Key); err != nil {
			rlog.Error("failed to mark reminder sent", sl.Err(err))
			metrics.Record(sweepReminders, metrics.ResultFailed)
			continue
		}
		metrics.Record(sweepReminders, metrics.ResultOK)
	}
}

// runPaymentTimeout отменяет заявки, не оплаченные за PaymentTimeout.
func (s *SchedulerService) runPaymentTimeout(ctx context.Context) {
	log := s.log.With(slog.String("sweep", sweepTimeout))
	metrics.SweepRuns.WithLabelValues(sweepTimeout).Inc()

	payments, err := s.Payments.ListPaymentsByStatus(ctx, models.StatusPending)
	if err != nil {
		log.Error("failed to list pending records", sl.Err(err))
		return
	}

	cutoff := s.Clock.Now().Add(-PaymentTimeout)
	for _, p := range payments {
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		plog := log.With(sl.PaymentKey(p.Key), sl.UserID(p.UserID))
		if _, err := s.Subscriptions.Cancel(ctx, p.Key); err != nil {
			plog.Warn("failed to cancel stale payment", sl.Err(err))
			metrics.Record(sweepTimeout, metrics.ResultSkipped)
			continue
		}
		if err := s.Notifier.Send(ctx, p.UserID, timeoutText(p)); err != nil {
			plog.Warn("failed to notify about timeout", sl.Err(err))
		}
		plog.Info("stale payment cancelled")
		metrics.Record(sweepTimeout, metrics.ResultOK)
	}
}

func (s *SchedulerService) runRevocationTimers(ctx context.Context) {
	metrics.SweepRuns.WithLabelValues(sweepRevocation).Inc()
	fired, failed, err := s.Invites.FireDue(ctx)
	if err != nil {
		s.log.Error("failed to fire revocation timers", slog.String("sweep", sweepRevocation), sl.Err(err))
		return
	}
	for range fired {
		metrics.Record(sweepRevocation, metrics.ResultOK)
	}
	for range failed {
		metrics.Record(sweepRevocation, metrics.ResultFailed)
	}
	if fired+failed > 0 {
		s.log.Info("revocation timers processed", slog.Int("fired", fired), slog.Int("failed", failed))
	}
}

func (s *SchedulerService) runQueueCleanup(ctx context.Context) {
	metrics.SweepRuns.WithLabelValues(sweepQueueCleanup).Inc()
	n, err := s.Queue.Cleanup(ctx)
	if err != nil {
		s.log.Error("failed to clean message queue", slog.String("sweep", sweepQueueCleanup), sl.Err(err))
		return
	}
	s.log.Info("message queue cleaned", slog.Int64("deleted", n))
}
