// Package calendar classifies dates and derives deterministic calendar
// factors (holidays, season, payday windows, school holidays, long
// weekends, trading-ban Sundays) for attendance forecasting.
package calendar

import (
	"time"
)

// DayType classifies a date for baseline selection. Tuesday is split out
// from other workdays because of the discount-ticket promotion.
type DayType string

const (
	Weekend DayType = "weekend"
	Workday DayType = "workday"
	Tuesday DayType = "tuesday"
)

// Classify returns the day type for a date.
func Classify(date time.Time) DayType {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	case time.Tuesday:
		return Tuesday
	default:
		return Workday
	}
}

// FallbackOrder returns day types to try, most similar first, when the
// target type has no historical data. Workday and Tuesday substitute for
// each other; weekends have no close substitute.
func FallbackOrder(dt DayType) []DayType {
	switch dt {
	case Workday:
		return []DayType{Workday, Tuesday}
	case Tuesday:
		return []DayType{Tuesday, Workday}
	default:
		return []DayType{Weekend}
	}
}

// easterSunday computes the Gregorian Easter date using the anonymous
// Gauss algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// HolidayKey returns the factor key describing the holiday situation of a
// date, or "none". Keys are stable identifiers: learned multipliers attach
// to them across years.
func HolidayKey(date time.Time) string {
	day := date.Day()
	month := date.Month()

	// Christmas period and New Year dominate everything else.
	switch {
	case month == time.December && day == 24:
		return "christmas_eve"
	case month == time.December && (day == 25 || day == 26):
		return "christmas"
	case month == time.December && day == 31:
		return "new_years_eve"
	case month == time.January && day == 1:
		return "new_year"
	}

	easter := easterSunday(date.Year())
	switch {
	case sameDay(date, easter) || sameDay(date, easter.AddDate(0, 0, 1)):
		return "easter"
	case sameDay(date, easter.AddDate(0, 0, 49)): // Pentecost Sunday
		return "public_holiday"
	case sameDay(date, easter.AddDate(0, 0, 60)): // Corpus Christi
		return "public_holiday"
	}

	// Fixed-date public holidays.
	fixed := [][2]int{
		{int(time.January), 6},   // Epiphany
		{int(time.May), 1},       // Labour Day
		{int(time.May), 3},       // Constitution Day
		{int(time.August), 15},   // Assumption
		{int(time.November), 1},  // All Saints
		{int(time.November), 11}, // Independence Day
	}
	for _, fd := range fixed {
		if int(month) == fd[0] && day == fd[1] {
			return "public_holiday"
		}
	}
	return "none"
}

// IsHoliday reports whether the date is a non-working public holiday.
func IsHoliday(date time.Time) bool {
	return HolidayKey(date) != "none"
}

// SeasonKey maps a date to its season factor key.
func SeasonKey(date time.Time) string {
	switch date.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// PaydayKey maps a date to a payday-cycle factor key. Most salaries land
// on the 1st or the 10th; the days just before month end are the leanest.
func PaydayKey(date time.Time) string {
	switch d := date.Day(); {
	case d <= 3, d >= 10 && d <= 12:
		return "payday_window"
	case d >= 25 && d <= 27:
		return "pre_payday"
	default:
		return "none"
	}
}

// SchoolHolidayMultiplier boosts daytime attendance during summer and
// winter school breaks. Pure date rule; no regional rotation is modeled.
func SchoolHolidayMultiplier(date time.Time) float64 {
	m := date.Month()
	if m == time.July || m == time.August {
		return 1.15
	}
	if (m == time.January && date.Day() >= 15) || m == time.February {
		return 1.10
	}
	return 1.0
}

// LongWeekendMultiplier returns a boost when the date sits inside a long
// weekend (a public holiday adjacent to a weekend, including the bridge
// day between them).
func LongWeekendMultiplier(date time.Time) float64 {
	if !isLongWeekendDay(date) {
		return 1.0
	}
	return 1.10
}

func isLongWeekendDay(date time.Time) bool {
	wd := date.Weekday()
	holiday := IsHoliday(date)

	switch wd {
	case time.Friday:
		return holiday || IsHoliday(date.AddDate(0, 0, 3)) // bridge to Monday holiday
	case time.Saturday:
		return IsHoliday(date.AddDate(0, 0, -1)) || IsHoliday(date.AddDate(0, 0, 2))
	case time.Sunday:
		return IsHoliday(date.AddDate(0, 0, -2)) || IsHoliday(date.AddDate(0, 0, 1))
	case time.Monday:
		return holiday || IsHoliday(date.AddDate(0, 0, -3))
	case time.Thursday:
		// Thursday holiday usually pulls Friday into the weekend too.
		return holiday
	default:
		return false
	}
}

// FirstWarmWeekendMultiplier dampens the first weekends of spring when
// good weather pulls audiences outdoors. Deterministic stand-in: weekends
// between mid-April and mid-May.
func FirstWarmWeekendMultiplier(date time.Time) float64 {
	wd := date.Weekday()
	if wd != time.Saturday && wd != time.Sunday {
		return 1.0
	}
	m, d := date.Month(), date.Day()
	inWindow := (m == time.April && d >= 15) || (m == time.May && d <= 15)
	if !inWindow {
		return 1.0
	}
	return 0.88
}

// TradingBanMultiplier boosts Sundays when retail is closed by law and the
// cinema is one of the few destinations open. Trading is allowed on the
// last Sunday of the month.
func TradingBanMultiplier(date time.Time) float64 {
	if date.Weekday() != time.Sunday {
		return 1.0
	}
	if isLastSundayOfMonth(date) {
		return 1.0
	}
	return 1.12
}

func isLastSundayOfMonth(date time.Time) bool {
	next := date.AddDate(0, 0, 7)
	return next.Month() != date.Month()
}
