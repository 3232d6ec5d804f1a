// Package availability определяет, можно ли сейчас купить тариф с календарным
// окном продаж, и считает моменты открытия окна и напоминания.
package availability

import (
	"time"

	"github.com/magabrotheeeer/channel-paywall/internal/lib/month"
)

// Zone часы в гражданском времени.
type Zone interface {
	Now() time.Time
	MonthlyAt(now time.Time, day, hour, minute int) time.Time
}

// Config параметры окна продаж.
type Config struct {
	StartDay      int
	EndDay        int
	ReminderDay   int
	ReminderHour  int
	BypassUserIDs []int64
}

// Calculator вычисляет окно продаж в одном часовом поясе
// независимо от локального времени сервера.
type Calculator struct {
	cfg    Config
	zone   Zone
	bypass map[int64]struct{}
}

// New создаёт Calculator.
func New(cfg Config, zone Zone) *Calculator {
	bypass := make(map[int64]struct{}, len(cfg.BypassUserIDs))
	for _, id := range cfg.BypassUserIDs {
		bypass[id] = struct{}{}
	}
	return &Calculator{cfg: cfg, zone: zone, bypass: bypass}
}

// IsAvailable сообщает, открыта ли продажа для пользователя.
// Окно включает оба граничных дня целиком.
func (c *Calculator) IsAvailable(userID int64) bool {
	if _, ok := c.bypass[userID]; ok {
		return true
	}
	day := c.zone.Now().Day()
	return day >= c.cfg.StartDay && day <= c.cfg.EndDay
}

// NextWindowStart возвращает ближайшее начало окна (StartDay 00:00).
// В самый момент открытия и позже возвращается начало окна следующего месяца.
func (c *Calculator) NextWindowStart() time.Time {
	return c.zone.MonthlyAt(c.zone.Now(), c.cfg.StartDay, 0, 0)
}

// NextReminderAt возвращает момент отправки напоминания (ReminderDay ReminderHour:00).
func (c *Calculator) NextReminderAt() time.Time {
	return c.zone.MonthlyAt(c.zone.Now(), c.cfg.ReminderDay, c.cfg.ReminderHour, 0)
}

// IsCloseToOpening сообщает, идёт ли обратный отсчёт перед открытием:
// день напоминания, начиная с часа напоминания и до конца суток.
func (c *Calculator) IsCloseToOpening() bool {
	now := c.zone.Now()
	return now.Day() == c.cfg.ReminderDay && now.Hour() >= c.cfg.ReminderHour
}

// TimeUntilOpening возвращает целые часы и минуты до открытия окна.
func (c *Calculator) TimeUntilOpening() (hours, minutes int) {
	now := c.zone.Now()
	return month.Split(c.zone.MonthlyAt(now, c.cfg.StartDay, 0, 0).Sub(now))
}
