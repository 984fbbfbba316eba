package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser: парсер cron-выражений (5 полей или дескрипторы вида @daily).
// Поддерживается префикс CRON_TZ=Europe/Berlin.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalculateNextTTL вычисляет следующий момент срабатывания правила после now.
//
// Правило: разовый момент в RFC 3339 или cron-выражение.
// Возвращает false, если правило некорректно или разовый момент уже прошёл.
func CalculateNextTTL(rule string, now time.Time) (time.Time, bool) {
	if at, err := time.Parse(time.RFC3339, rule); err == nil {
		if !at.After(now) {
			return time.Time{}, false
		}
		return at.UTC(), true
	}

	schedule, err := cronParser.Parse(rule)
	if err != nil {
		return time.Time{}, false
	}

	next := schedule.Next(now)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true // в UTC для хранения
}

// ValidateRule проверяет правило. Разовый момент в прошлом тоже считается ошибкой.
func ValidateRule(rule string, now time.Time) error {
	if _, ok := CalculateNextTTL(rule, now); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidScheduleRule, rule)
	}
	return nil
}

// IsRecurring возвращает true для cron-правил.
func IsRecurring(rule string) bool {
	_, err := time.Parse(time.RFC3339, rule)
	return err != nil
}
