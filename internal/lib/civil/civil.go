// Package civil даёт "сейчас" в фиксированном часовом поясе и считает
// календарные моменты вида "25 число в 18:00" с переходом через месяц и год.
package civil

import (
	"fmt"
	"time"

	// База часовых поясов внутри бинарника, чтобы Europe/Moscow работал в scratch-образах.
	_ "time/tzdata"
)

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Zone часы в заданном часовом поясе.
type Zone struct {
	loc *time.Location
	now func() time.Time
}

// LoadZone загружает часовой пояс по имени IANA.
func LoadZone(name string) (*Zone, error) {
	const op = "civil.LoadZone"
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewZone(loc, time.Now), nil
}

// NewZone создаёт часы с произвольным источником времени, удобно для тестов.
func NewZone(loc *time.Location, now func() time.Time) *Zone {
	if now == nil {
		now = time.Now
	}
	return &Zone{loc: loc, now: now}
}

// Now возвращает текущий момент в поясе зоны.
func (z *Zone) Now() time.Time {
	return z.now().In(z.loc)
}

// Location возвращает часовой пояс.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// In переводит момент в пояс зоны.
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// MonthlyAt возвращает ближайший момент day/hour:min, не раньше now.
// Если в текущем месяце он уже наступил (или равен now), берётся следующий месяц.
// Переполнение месяца нормализует time.Date, декабрь переходит в январь.
func (z *Zone) MonthlyAt(now time.Time, day, hour, minute int) time.Time {
	now = now.In(z.loc)
	target := time.Date(now.Year(), now.Month(), day, hour, minute, 0, 0, z.loc)
	if now.Before(target) {
		return target
	}
	return time.Date(now.Year(), now.Month()+1, day, hour, minute, 0, 0, z.loc)
}

// Format форматирует момент для пользователя в поясе зоны.
func (z *Zone) Format(t time.Time) string {
	return t.In(z.loc).Format("02.01.2006 15:04")
}

// Fixed часы, всегда возвращающие один и тот же момент.
type Fixed time.Time

// Now реализует Clock.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
