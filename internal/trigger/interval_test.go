package trigger

import (
	"errors"
	"testing"
	"time"
)

func TestParseInterval_Constant(t *testing.T) {
	tests := []struct {
		expr string
		step time.Duration
	}{
		{"every second", time.Second},
		{"every 30 seconds", 30 * time.Second},
		{"every minute", time.Minute},
		{"every 5 minutes", 5 * time.Minute},
		{"every hour", time.Hour},
		{"every 2 hours", 2 * time.Hour},
		{"every day", 24 * time.Hour},
		{"every 3 days", 72 * time.Hour},
		{"EVERY 10 SECONDS", 10 * time.Second}, // регистр не важен
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := ParseInterval(tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Интервал между двумя последовательными срабатываниями
			// должен равняться шагу
			base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
			first := sched.Next(base)
			second := sched.Next(first)
			if got := second.Sub(first); got != tt.step {
				t.Errorf("expected step %v, got %v", tt.step, got)
			}
		})
	}
}

func TestParseInterval_DailyAt(t *testing.T) {
	sched, err := ParseInterval("every day at 07:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) // понедельник, после 07:30
	next := sched.Next(base)
	want := time.Date(2026, 1, 6, 7, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestParseInterval_WeekdayAt(t *testing.T) {
	sched, err := ParseInterval("every monday at 12:30:10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC) // понедельник, после 12:30
	next := sched.Next(base)
	want := time.Date(2026, 1, 12, 12, 30, 10, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestParseInterval_RawCron(t *testing.T) {
	// Шестипольный cron с секундами
	sched, err := ParseInterval("0 */15 * * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2026, 1, 5, 12, 1, 0, 0, time.UTC)
	next := sched.Next(base)
	want := time.Date(2026, 1, 5, 12, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	exprs := []string{
		"",
		"every",
		"every 0 seconds",
		"every -5 minutes",
		"every fortnight",
		"every two hours",
		"every someday at 10:00",
		"every day at 25:00",
		"every day at 10:61",
		"every day at noon",
		"not a cron at all",
	}

	for _, expr := range exprs {
		if _, err := ParseInterval(expr); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("%q: expected ErrInvalidInterval, got %v", expr, err)
		}
	}
}
