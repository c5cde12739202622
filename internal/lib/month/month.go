// Package month содержит календарные вычисления по месяцам,
// используемые при агрегации подписок.
package month

import (
	"time"
)

// Same сообщает, что a и b приходятся на один календарный месяц одного года.
func Same(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Elapsed считает количество полных месяцев от start до now.
// Если now раньше start, возвращает 0.
func Elapsed(start, now time.Time) int {
	if !now.After(start) {
		return 0
	}

	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())

	// Если день текущей даты раньше дня начала, последний месяц ещё не завершён
	if now.Day() < start.Day() {
		months--
	}

	if months < 0 {
		return 0
	}
	return months
}
