package storage

import "time"

// AgeWindow translates an age range into a date-of-birth window anchored at
// now: a user aged between min and max (inclusive) was born inside it.
func AgeWindow(minAge, maxAge int, now time.Time) (minDOB, maxDOB time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	minDOB = today.AddDate(-maxAge-1, 0, 0)
	maxDOB = today.AddDate(-minAge, 0, 0)
	return minDOB, maxDOB
}
