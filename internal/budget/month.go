package budget

import (
	"fmt"
	"time"
)

// YearMonth is a calendar month. All windows are computed in UTC.
type YearMonth struct {
	Year  int
	Month time.Month
}

func NewYearMonth(year int, month int) (YearMonth, error) {
	if month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	if year < 1 || year > 9999 {
		return YearMonth{}, fmt.Errorf("year must be between 1 and 9999, got %d", year)
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

func MonthOf(t time.Time) YearMonth {
	t = t.UTC()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the month.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month, exclusive.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, 0)
}

func (ym YearMonth) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(ym.Start()) && t.Before(ym.End())
}

func (ym YearMonth) Days() int {
	return ym.End().AddDate(0, 0, -1).Day()
}

func (ym YearMonth) Next() YearMonth {
	return MonthOf(ym.End())
}

func (ym YearMonth) Previous() YearMonth {
	return MonthOf(ym.Start().AddDate(0, -1, 0))
}

// Name formats the month as "October 2026".
func (ym YearMonth) Name() string {
	return ym.Start().Format("January 2006")
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// DayLabel is the label used in day-by-day history, "05 Oct".
func DayLabel(t time.Time) string {
	return t.UTC().Format("02 Jan")
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
