package backend

import "time"

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func derefID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
