package calendar

// The equity session runs 09:30-11:30 and 13:00-15:00, 240 traded minutes.
// MinutesSinceOpen maps a timestamp onto a symbolic session clock: 1 at
// 09:30, 121 at both 11:30 and 13:00 (the lunch gap collapses), 241 at the
// 15:00 close. Anything outside the session maps to 0 and the minute loop
// skips the tick entirely.

// SessionMinutes is the number of traded minutes per day.
const SessionMinutes = 240

// MinutesSinceOpen returns the session clock value for a YYYYMMDDHHMMSS
// timestamp, or 0 when the timestamp is outside trading hours.
func MinutesSinceOpen(timestamp string) int {
	hh, mm, ok := parseHourMinute(timestamp)
	if !ok {
		return 0
	}
	switch {
	case hh == 9 && mm >= 30:
		return mm - 29
	case hh == 10:
		return 31 + mm
	case hh == 11 && mm <= 30:
		return 91 + mm
	case hh == 13:
		return 121 + mm
	case hh == 14:
		return 181 + mm
	case hh == 15 && mm == 0:
		return 241
	default:
		return 0
	}
}

// DatePart returns the YYYYMMDD prefix of a YYYYMMDDHHMMSS timestamp.
func DatePart(timestamp string) string {
	if len(timestamp) < 8 {
		return ""
	}
	return timestamp[:8]
}

// TimeOfDayMinutes converts the HHMM portion of a timestamp to minutes
// since midnight, for time-of-day trade gates. Returns -1 on malformed
// input so comparisons against a gate value fail closed.
func TimeOfDayMinutes(timestamp string) int {
	hh, mm, ok := parseHourMinute(timestamp)
	if !ok {
		return -1
	}
	return hh*60 + mm
}

// ParseClock converts an HH:MM string to minutes since midnight; -1 on
// malformed input.
func ParseClock(hhmm string) int {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return -1
	}
	hh := digits2(hhmm[0], hhmm[1])
	mm := digits2(hhmm[3], hhmm[4])
	if hh < 0 || mm < 0 || hh > 23 || mm > 59 {
		return -1
	}
	return hh*60 + mm
}

func parseHourMinute(timestamp string) (int, int, bool) {
	if len(timestamp) < 12 {
		return 0, 0, false
	}
	hh := digits2(timestamp[8], timestamp[9])
	mm := digits2(timestamp[10], timestamp[11])
	if hh < 0 || mm < 0 || hh > 23 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}

func digits2(a, b byte) int {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return -1
	}
	return int(a-'0')*10 + int(b-'0')
}
