package fortune

import "time"

// DayStart returns midnight of now's calendar day in tz. The result keeps tz
// as its location so its Year/Month/Day are the fortune date.
func DayStart(now time.Time, tz *time.Location) time.Time {
	local := now.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}
