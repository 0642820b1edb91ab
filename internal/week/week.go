// Package week implements the comic-week calendar. New comics land on
// Wednesdays, so a comic week runs Wednesday through the following Tuesday
// and is labeled by the ISO year-week of its starting Wednesday, e.g.
// "2024-W48" for the week starting Wed 2024-11-27.
package week

import (
	"fmt"
	"time"
)

// IDForDate returns the comic week identifier for a date. Shifting the date
// back two days maps Wednesday onto the start of an ISO week (Monday), so the
// whole Wed-Tue span shares one label. Time of day and zone are discarded
// first: two instants on the same wall-clock date always get the same ID.
func IDForDate(t time.Time) string {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	isoYear, isoWeek := day.AddDate(0, 0, -2).ISOWeek()
	return fmt.Sprintf("%d-W%02d", isoYear, isoWeek)
}

// CurrentID returns the comic week identifier for today.
func CurrentID() string {
	return IDForDate(time.Now())
}

// StartDate returns the Wednesday that begins the given comic week.
func StartDate(weekID string) (time.Time, error) {
	var year, wk int
	if _, err := fmt.Sscanf(weekID, "%d-W%d", &year, &wk); err != nil {
		return time.Time{}, fmt.Errorf("invalid week id %q: %w", weekID, err)
	}
	if wk < 1 || wk > 53 {
		return time.Time{}, fmt.Errorf("invalid week id %q: week out of range", weekID)
	}
	// January 4th is always inside ISO week 1 of its year.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-wd)
	monday := week1Monday.AddDate(0, 0, (wk-1)*7)
	return monday.AddDate(0, 0, 2), nil
}

// CurrentStart returns the Wednesday that begins the current comic week.
func CurrentStart() time.Time {
	y, m, d := time.Now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	daysSinceWednesday := (int(today.Weekday()) - int(time.Wednesday) + 7) % 7
	return today.AddDate(0, 0, -daysSinceWednesday)
}

// PreviousID returns the identifier of the comic week before weekID,
// rolling over ISO year boundaries.
func PreviousID(weekID string) (string, error) {
	start, err := StartDate(weekID)
	if err != nil {
		return "", err
	}
	return IDForDate(start.AddDate(0, 0, -7)), nil
}

// NextID returns the identifier of the comic week after weekID.
func NextID(weekID string) (string, error) {
	start, err := StartDate(weekID)
	if err != nil {
		return "", err
	}
	return IDForDate(start.AddDate(0, 0, 7)), nil
}

// FormatDisplay renders a week's Wed-Tue span for display, e.g.
// "Nov 27 - Dec 03, 2024", collapsing the month or year when shared.
func FormatDisplay(weekID string) (string, error) {
	start, err := StartDate(weekID)
	if err != nil {
		return "", err
	}
	end := start.AddDate(0, 0, 6)
	switch {
	case start.Month() == end.Month():
		return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("02, 2006")), nil
	case start.Year() == end.Year():
		return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006")), nil
	default:
		return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006")), nil
	}
}
