// Package schedule implements the recurring rule engine: next-occurrence
// date arithmetic, the bounded catch-up loop, and execution dispatch.
package schedule

import (
	"time"

	"github.com/finchapp/finch/internal/domain"
)

// DateLayout is the wire format for all occurrence dates. Dates use the
// host's local calendar; YYYY-MM-DD strings compare correctly with <= .
const DateLayout = "2006-01-02"

// Midnight truncates t to local midnight.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string in the local calendar.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: "date", Message: "invalid format, use YYYY-MM-DD"}
	}
	return t, nil
}

// DiffDays returns the whole days elapsed from one date to another,
// clamped at zero. Invalid inputs count as zero elapsed days.
func DiffDays(from, to string) int {
	f, err := ParseDate(from)
	if err != nil {
		return 0
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0
	}
	days := int(t.Sub(f) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func daysInYear(year int) int {
	if isLeapYear(year) {
		return 366
	}
	return 365
}

// daysInMonth returns the length of the given month; day 0 of the next
// month is its last day.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// monthlyDate resolves a monthly rule's target day within one month,
// clamping against that month's actual length (31 lands on Apr 30 but
// returns to May 31).
func monthlyDate(year int, month time.Month, monthDay int) time.Time {
	day := clamp(monthDay, 1, 31)
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// yearlyDate resolves a yearly rule's target day-of-year within one
// year, clamping 366 down to 365 in non-leap years.
func yearlyDate(year, yearDay int) time.Time {
	day := clamp(yearDay, 1, 366)
	if max := daysInYear(year); day > max {
		day = max
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, day-1)
}

// NextRunAt establishes the first occurrence of a rule on or after
// today. Today itself counts when it matches the rule's pattern.
func NextRunAt(rule *domain.RecurringRule, today time.Time) (string, error) {
	today = Midnight(today)

	switch rule.Frequency {
	case domain.FreqDaily:
		return FormatDate(today), nil

	case domain.FreqWeekly:
		if rule.Weekday == nil {
			return "", &domain.ErrValidation{Field: "weekday", Message: "required for weekly rules"}
		}
		target := time.Weekday(clamp(*rule.Weekday, 0, 6))
		d := today
		for d.Weekday() != target {
			d = d.AddDate(0, 0, 1)
		}
		return FormatDate(d), nil

	case domain.FreqMonthly:
		if rule.MonthDay == nil {
			return "", &domain.ErrValidation{Field: "month_day", Message: "required for monthly rules"}
		}
		d := monthlyDate(today.Year(), today.Month(), *rule.MonthDay)
		if d.Before(today) {
			next := today.AddDate(0, 0, -today.Day()+1).AddDate(0, 1, 0)
			d = monthlyDate(next.Year(), next.Month(), *rule.MonthDay)
		}
		return FormatDate(d), nil

	case domain.FreqYearly:
		if rule.YearDay == nil {
			return "", &domain.ErrValidation{Field: "year_day", Message: "required for yearly rules"}
		}
		d := yearlyDate(today.Year(), *rule.YearDay)
		if d.Before(today) {
			d = yearlyDate(today.Year()+1, *rule.YearDay)
		}
		return FormatDate(d), nil
	}

	return "", &domain.ErrValidation{Field: "frequency", Message: "unknown frequency"}
}

// Advance computes the occurrence following current, which was just
// executed. The result is always strictly after current: monthly and
// yearly rules restart from the next period and clamp against the
// target period's length, so short months never cause drift or stalls.
func Advance(rule *domain.RecurringRule, current string) (string, error) {
	base, err := ParseDate(current)
	if err != nil {
		return "", err
	}

	switch rule.Frequency {
	case domain.FreqDaily:
		return FormatDate(base.AddDate(0, 0, 1)), nil

	case domain.FreqWeekly:
		return FormatDate(base.AddDate(0, 0, 7)), nil

	case domain.FreqMonthly:
		if rule.MonthDay == nil {
			return "", &domain.ErrValidation{Field: "month_day", Message: "required for monthly rules"}
		}
		first := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, 1, 0)
		return FormatDate(monthlyDate(first.Year(), first.Month(), *rule.MonthDay)), nil

	case domain.FreqYearly:
		if rule.YearDay == nil {
			return "", &domain.ErrValidation{Field: "year_day", Message: "required for yearly rules"}
		}
		return FormatDate(yearlyDate(base.Year()+1, *rule.YearDay)), nil
	}

	return "", &domain.ErrValidation{Field: "frequency", Message: "unknown frequency"}
}
