package trigger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidInterval — выражение интервала не распознано.
var ErrInvalidInterval = errors.New("invalid interval expression")

// scheduleParser — cron-парсер с поддержкой секунд: выражения
// "every ... at HH:MM:SS" компилируются в шестипольный cron.
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// weekdays — дни недели для "every monday at ...".
var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// ParseInterval компилирует params.interval time-trigger шага
// в расписание.
//
// Поддерживаемые формы:
//
//	every second | every 30 seconds
//	every minute | every 5 minutes
//	every hour   | every 2 hours
//	every day    | every 3 days
//	every day at 07:00 | every monday at 12:30:10
//
// Выражение, не начинающееся с "every", трактуется как cron
// (шесть полей, с секундами).
func ParseInterval(expr string) (cron.Schedule, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidInterval)
	}

	if !strings.HasPrefix(s, "every ") {
		sched, err := scheduleParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, expr, err)
		}
		return sched, nil
	}

	rest := strings.TrimSpace(strings.TrimPrefix(s, "every "))

	if subject, at, ok := strings.Cut(rest, " at "); ok {
		return parseDaily(strings.TrimSpace(subject), strings.TrimSpace(at))
	}
	return parseConstant(rest)
}

// parseConstant разбирает "every [N] <unit>" в расписание
// с постоянным шагом.
func parseConstant(rest string) (cron.Schedule, error) {
	fields := strings.Fields(rest)

	n := 1
	var unit string
	switch len(fields) {
	case 1:
		unit = fields[0]
	case 2:
		parsed, err := strconv.Atoi(fields[0])
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: bad count %q", ErrInvalidInterval, fields[0])
		}
		n = parsed
		unit = fields[1]
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, rest)
	}

	var step time.Duration
	switch strings.TrimSuffix(unit, "s") {
	case "second":
		step = time.Second
	case "minute":
		step = time.Minute
	case "hour":
		step = time.Hour
	case "day":
		step = 24 * time.Hour
	default:
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidInterval, unit)
	}

	return cron.Every(time.Duration(n) * step), nil
}

// parseDaily разбирает "every <day|weekday> at HH:MM[:SS]".
func parseDaily(subject, at string) (cron.Schedule, error) {
	dow := "*"
	if subject != "day" {
		n, ok := weekdays[subject]
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidInterval, subject)
		}
		dow = strconv.Itoa(n)
	}

	hour, minute, second, err := parseClock(at)
	if err != nil {
		return nil, err
	}

	spec := fmt.Sprintf("%d %d %d * * %s", second, minute, hour, dow)
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, at, err)
	}
	return sched, nil
}

// parseClock разбирает "HH:MM" или "HH:MM:SS".
func parseClock(at string) (hour, minute, second int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: bad time %q", ErrInvalidInterval, at)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("%w: bad time %q", ErrInvalidInterval, at)
		}
		nums[i] = n
	}

	hour, minute = nums[0], nums[1]
	if len(nums) == 3 {
		second = nums[2]
	}
	if hour > 23 || minute > 59 || second > 59 {
		return 0, 0, 0, fmt.Errorf("%w: time out of range %q", ErrInvalidInterval, at)
	}
	return hour, minute, second, nil
}
