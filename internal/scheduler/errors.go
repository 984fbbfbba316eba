package scheduler

import "errors"

var (
	// ErrInvalidScheduleRule: правило нельзя разобрать или оно больше не сработает.
	ErrInvalidScheduleRule = errors.New("invalid schedule rule")

	// ErrNotSchedule: таймер не является schedule-таймером.
	ErrNotSchedule = errors.New("timer is not a schedule")
)
