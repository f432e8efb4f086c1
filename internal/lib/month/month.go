// Package month содержит календарные помощники: вычисление производных month/year,
// разбор дат из запросов и поиск названия месяца в тексте.
package month

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate возвращается, если строку не удалось разобрать как дату.
var ErrInvalidDate = errors.New("invalid date format")

// Names названия месяцев в порядке календаря. Порядок определяет приоритет в Detect.
var Names = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Derive возвращает календарные месяц (1-12) и год даты в UTC.
func Derive(t time.Time) (int, int) {
	u := t.UTC()
	return int(u.Month()), u.Year()
}

// ParseDate разбирает дату в одном из поддерживаемых форматов.
// Даты без часового пояса считаются UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// EndOfDay возвращает последний момент суток даты t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Name возвращает название месяца 1-12 или пустую строку.
func Name(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return Names[m-1]
}

// Detect ищет первое из Names, входящее в запрос подстрокой,
// и возвращает его номер. Без совпадений возвращается текущий месяц.
func Detect(query string, now time.Time) int {
	lower := strings.ToLower(query)
	for i, name := range Names {
		if strings.Contains(lower, name) {
			return i + 1
		}
	}
	return int(now.Month())
}
