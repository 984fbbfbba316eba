package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestCalculateNextTTL(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 20, 0, time.UTC)

	tests := []struct {
		name   string
		rule   string
		want   time.Time
		wantOK bool
	}{
		{
			name:   "every minute",
			rule:   "* * * * *",
			want:   time.Date(2024, 3, 15, 10, 31, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "daily at 9",
			rule:   "0 9 * * *",
			want:   time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "descriptor",
			rule:   "@hourly",
			want:   time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "future one-shot",
			rule:   "2024-03-20T12:00:00Z",
			want:   time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "one-shot with offset",
			rule:   "2024-03-20T15:00:00+03:00",
			want:   time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "past one-shot",
			rule:   "2024-03-01T00:00:00Z",
			wantOK: false,
		},
		{
			name:   "one-shot equal to now",
			rule:   now.Format(time.RFC3339),
			wantOK: false,
		},
		{
			name:   "malformed",
			rule:   "every tuesday",
			wantOK: false,
		},
		{
			name:   "too many fields",
			rule:   "* * * * * *",
			wantOK: false,
		},
		{
			name:   "empty",
			rule:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CalculateNextTTL(tt.rule, now)
			if ok != tt.wantOK {
				t.Fatalf("CalculateNextTTL(%q) ok = %v, want %v", tt.rule, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("CalculateNextTTL(%q) = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func TestCalculateNextTTL_StrictlyAfterNow(t *testing.T) {
	// Ровно на границе минуты следующее срабатывание всё равно в будущем
	now := time.Date(2024, 3, 15, 10, 31, 0, 0, time.UTC)

	got, ok := CalculateNextTTL("* * * * *", now)
	if !ok {
		t.Fatal("expected next TTL")
	}
	if !got.After(now) {
		t.Errorf("next TTL %v is not after %v", got, now)
	}
}

func TestValidateRule(t *testing.T) {
	now := time.Now()

	if err := ValidateRule("*/5 * * * *", now); err != nil {
		t.Errorf("ValidateRule() unexpected error: %v", err)
	}

	err := ValidateRule("not a rule", now)
	if !errors.Is(err, ErrInvalidScheduleRule) {
		t.Errorf("ValidateRule() error = %v, want ErrInvalidScheduleRule", err)
	}
}

func TestIsRecurring(t *testing.T) {
	if !IsRecurring("0 * * * *") {
		t.Error("cron rule should be recurring")
	}
	if IsRecurring("2030-01-01T00:00:00Z") {
		t.Error("one-shot should not be recurring")
	}
}
