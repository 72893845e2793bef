package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date recognition tiers, first valid match wins:
//
//  1. relative words (today/yesterday/tomorrow) against the fallback instant
//  2. D-M-YYYY (also D/M/YYYY)
//  3. YYYY-M-D
//  4. D-M-YY (00-50 -> 2000s, 51-99 -> 1900s)
//  5. D[st/nd/rd/th] MonthName [YY|YYYY]
//
// Candidates are validated against real calendar rules (leap years included)
// before acceptance; if no tier yields a valid date the fallback instant's
// date is used verbatim.
var (
	relativeDayPattern = regexp.MustCompile(`(?i)\b(today|yesterday|tomorrow)\b`)
	dmyPattern         = regexp.MustCompile(`\b([0-9]{1,2})[-/]([0-9]{1,2})[-/]([0-9]{4})\b`)
	ymdPattern         = regexp.MustCompile(`\b([0-9]{4})[-/]([0-9]{1,2})[-/]([0-9]{1,2})\b`)
	dmyShortPattern    = regexp.MustCompile(`\b([0-9]{1,2})[-/]([0-9]{1,2})[-/]([0-9]{2})\b`)
	monthNamePattern   = regexp.MustCompile(`(?i)\b([0-9]{1,2})(?:st|nd|rd|th)?[\s\-/,]*(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b[\s\-/,]*([0-9]{2,4})?\b`)
	timePattern        = regexp.MustCompile(`\b([0-9]{1,2}):([0-9]{2})(?::([0-9]{2}))?\s*([AaPp][Mm])?\b`)
)

var monthsByPrefix = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ExtractDate returns the transaction date as "YYYY-MM-DD". The second
// return value is false when the fallback instant's date was used.
func ExtractDate(text string, fallback time.Time) (string, bool) {
	if m := relativeDayPattern.FindStringSubmatch(text); m != nil {
		day := fallback
		switch strings.ToLower(m[1]) {
		case "yesterday":
			day = fallback.AddDate(0, 0, -1)
		case "tomorrow":
			day = fallback.AddDate(0, 0, 1)
		}
		return day.Format("2006-01-02"), true
	}

	if d, ok := firstValidNumericDate(text, dmyPattern, 0, 1, 2, false); ok {
		return d, true
	}
	if d, ok := firstValidNumericDate(text, ymdPattern, 2, 1, 0, false); ok {
		return d, true
	}
	if d, ok := firstValidNumericDate(text, dmyShortPattern, 0, 1, 2, true); ok {
		return d, true
	}
	if d, ok := firstValidMonthNameDate(text, fallback); ok {
		return d, true
	}

	return fallback.Format("2006-01-02"), false
}

// ExtractTime returns the transaction time as 24-hour "HH:MM:SS". The second
// return value is false when the fallback instant's time was used.
func ExtractTime(text string, fallback time.Time) (string, bool) {
	for _, m := range timePattern.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		second := 0
		if m[3] != "" {
			second, _ = strconv.Atoi(m[3])
		}

		if meridiem := strings.ToLower(m[4]); meridiem != "" {
			if hour < 1 || hour > 12 {
				continue
			}
			if meridiem == "pm" && hour != 12 {
				hour += 12
			}
			if meridiem == "am" && hour == 12 {
				hour = 0
			}
		}

		if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
			continue
		}
		return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), true
	}

	return fallback.Format("15:04:05"), false
}

// ExtractDateTime extracts both fields against the same fallback instant.
func ExtractDateTime(text string, fallback time.Time) (date string, dateExplicit bool, timeOfDay string, timeExplicit bool) {
	date, dateExplicit = ExtractDate(text, fallback)
	timeOfDay, timeExplicit = ExtractTime(text, fallback)
	return date, dateExplicit, timeOfDay, timeExplicit
}

func firstValidNumericDate(text string, p *regexp.Regexp, dayIdx, monthIdx, yearIdx int, shortYear bool) (string, bool) {
	for _, m := range p.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[dayIdx+1])
		month, _ := strconv.Atoi(m[monthIdx+1])
		year, _ := strconv.Atoi(m[yearIdx+1])
		if shortYear {
			year = expandTwoDigitYear(year)
		}
		if validCalendarDate(year, month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
		}
	}
	return "", false
}

func firstValidMonthNameDate(text string, fallback time.Time) (string, bool) {
	for _, m := range monthNamePattern.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month := monthsByPrefix[strings.ToLower(m[2])[:3]]

		year := fallback.Year()
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			switch len(m[3]) {
			case 2:
				year = expandTwoDigitYear(y)
			case 4:
				year = y
			default:
				continue
			}
		}

		if validCalendarDate(year, month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
		}
	}
	return "", false
}

// expandTwoDigitYear maps 00-50 to the 2000s and 51-99 to the 1900s.
func expandTwoDigitYear(y int) int {
	if y <= 50 {
		return 2000 + y
	}
	return 1900 + y
}

func validCalendarDate(year, month, day int) bool {
	if year < 1900 || year > 2200 {
		return false
	}
	if month < 1 || month > 12 {
		return false
	}
	if day < 1 || day > daysInMonth(year, month) {
		return false
	}
	return true
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	default:
		if isLeapYear(year) {
			return 29
		}
		return 28
	}
}

// isLeapYear: divisible by 4, not by 100 unless by 400.
func isLeapYear(year int) bool {
	if year%400 == 0 {
		return true
	}
	if year%100 == 0 {
		return false
	}
	return year%4 == 0
}
