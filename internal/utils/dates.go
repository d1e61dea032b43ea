package utils

import "time"

// CalculateNextOptionsExpiration returns the next third Friday for options expiration
// This implements the standard options expiration business logic:
// - Third Friday of current month if we haven't reached the expiration week yet
// - Third Friday of next month if we're in or past the expiration week
func CalculateNextOptionsExpiration() string {
	today := time.Now()
	currentMonth := today.Month()
	currentYear := today.Year()

	// Find 3rd Friday of current month
	firstDay := time.Date(currentYear, currentMonth, 1, 0, 0, 0, 0, today.Location())
	firstFriday := firstDay
	for firstFriday.Weekday() != time.Friday {
		firstFriday = firstFriday.AddDate(0, 0, 1)
	}
	thirdFriday := firstFriday.AddDate(0, 0, 14)

	// If current day is in the week of 3rd Friday or past it, use next month's 3rd Friday
	weekStart := thirdFriday.AddDate(0, 0, -7)

	if today.After(weekStart) || today.Equal(weekStart) {
		// Use next month's 3rd Friday
		nextMonth := currentMonth + 1
		nextYear := currentYear
		if nextMonth > 12 {
			nextMonth = 1
			nextYear++
		}
		nextFirstDay := time.Date(nextYear, nextMonth, 1, 0, 0, 0, 0, today.Location())
		nextFirstFriday := nextFirstDay
		for nextFirstFriday.Weekday() != time.Friday {
			nextFirstFriday = nextFirstFriday.AddDate(0, 0, 1)
		}
		nextThirdFriday := nextFirstFriday.AddDate(0, 0, 14)
		return nextThirdFriday.Format("2006-01-02")
	}

	return thirdFriday.Format("2006-01-02")
}

// NextMonthlyExpirations returns the next n monthly expiration dates,
// starting from the one CalculateNextOptionsExpiration picks
func NextMonthlyExpirations(n int) []string {
	if n <= 0 {
		return nil
	}

	first, err := time.Parse("2006-01-02", CalculateNextOptionsExpiration())
	if err != nil {
		return nil
	}

	out := make([]string, 0, n)
	out = append(out, first.Format("2006-01-02"))
	year, month := first.Year(), first.Month()
	for len(out) < n {
		month++
		if month > 12 {
			month = 1
			year++
		}
		out = append(out, thirdFridayOf(year, month).Format("2006-01-02"))
	}
	return out
}

// thirdFridayOf returns the third Friday of the given month
func thirdFridayOf(year int, month time.Month) time.Time {
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	for day.Weekday() != time.Friday {
		day = day.AddDate(0, 0, 1)
	}
	return day.AddDate(0, 0, 14)
}
