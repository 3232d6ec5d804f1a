// Package month содержит календарную арифметику по месяцам.
package month

import "time"

// Add прибавляет n календарных месяцев к t.
// Число месяца сохраняется, если в целевом месяце есть такой день,
// иначе дата нормализуется вперёд по правилам time.Date:
// 31 января + 1 месяц = 2 или 3 марта.
func Add(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// Extend вычисляет новую дату окончания подписки при продлении.
// Отсчёт идёт от более поздней из дат end и now, поэтому досрочное
// продление не теряет оставшееся время, а просроченное не накапливается.
func Extend(end, now time.Time, n int) time.Time {
	base := end
	if now.After(end) {
		base = now
	}
	return Add(base, n)
}

// Split разбивает длительность на целые часы и минуты.
// Отрицательная длительность даёт нули.
func Split(d time.Duration) (hours, minutes int) {
	if d <= 0 {
		return 0, 0
	}
	hours = int(d / time.Hour)
	minutes = int((d % time.Hour) / time.Minute)
	return hours, minutes
}
