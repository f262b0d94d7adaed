// Package duedate derives urgency buckets, labels and ordering keys from assignment due dates.
//
// Every function is pure: the caller supplies "now", so the same inputs always give the same output.
package duedate

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dustin/go-humanize"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// Bucket classifies how close a due date is.
type Bucket string

const (
	BucketNone     Bucket = "none"
	BucketOverdue  Bucket = "overdue"
	BucketToday    Bucket = "today"
	BucketTomorrow Bucket = "tomorrow"
	BucketUrgent   Bucket = "urgent"
	BucketSoon     Bucket = "soon"
	BucketLater    Bucket = "later"
)

const absoluteLayout = "Jan 2, 2006"

var bucketStyles = map[Bucket]models.Style{
	BucketOverdue:  {Foreground: "red-600", Background: "red-50"},
	BucketToday:    {Foreground: "orange-600", Background: "orange-50"},
	BucketTomorrow: {Foreground: "amber-600", Background: "amber-50"},
	BucketUrgent:   {Foreground: "yellow-600", Background: "yellow-50"},
	BucketSoon:     {Foreground: "blue-600", Background: "blue-50"},
	BucketLater:    {Foreground: "gray-600", Background: "gray-50"},
	BucketNone:     {Foreground: "gray-400", Background: "gray-50"},
}

// Style returns the colour pairing for the bucket. Unknown buckets use the none style.
func (b Bucket) Style() models.Style {
	if style, ok := bucketStyles[b]; ok {
		return style
	}
	return bucketStyles[BucketNone]
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}

// DayOffset returns the number of calendar days from today to due. Negative means past.
func DayOffset(due civil.Date, now time.Time) int {
	return due.DaysSince(Today(now))
}

// Classify maps a due date onto its urgency bucket, ignoring the time of day.
func Classify(due *civil.Date, now time.Time) Bucket {
	if due == nil {
		return BucketNone
	}

	offset := DayOffset(*due, now)
	switch {
	case offset < 0:
		return BucketOverdue
	case offset == 0:
		return BucketToday
	case offset == 1:
		return BucketTomorrow
	case offset <= 3:
		return BucketUrgent
	case offset <= 7:
		return BucketSoon
	default:
		return BucketLater
	}
}

// RelativeLabel renders a short relative description. ok is false when there is no due date.
func RelativeLabel(due *civil.Date, now time.Time) (label string, ok bool) {
	if due == nil {
		return "", false
	}

	offset := DayOffset(*due, now)
	switch {
	case offset == 0:
		return "Today", true
	case offset == 1:
		return "Tomorrow", true
	case offset < 0:
		return "Overdue", true
	case offset <= 7:
		return fmt.Sprintf("In %d days", offset), true
	}

	target := due.In(now.Location())
	distance := strings.TrimSpace(humanize.RelTime(now, target, "", ""))
	return "in " + distance, true
}

// FormatAbsolute renders "Mon D, YYYY", with " at <time>" appended when a due time is known.
func FormatAbsolute(due *civil.Date, dueTime *string) string {
	if due == nil {
		return "No due date"
	}

	formatted := due.In(time.UTC).Format(absoluteLayout)
	if dueTime != nil && strings.TrimSpace(*dueTime) != "" {
		formatted += " at " + strings.TrimSpace(*dueTime)
	}
	return formatted
}

// Compare orders two due dates ascending. Undated values sort after every dated value; two
// undated values compare equal so a stable sort keeps their original order.
func Compare(a, b *civil.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}

// CompareDescending orders dated values latest first while still placing undated values last.
func CompareDescending(a, b *civil.Date) int {
	if a == nil || b == nil {
		return Compare(a, b)
	}
	return Compare(b, a)
}

// Within reports whether due falls between today and today+days inclusive.
func Within(due *civil.Date, now time.Time, days int) bool {
	if due == nil {
		return false
	}
	offset := DayOffset(*due, now)
	return offset >= 0 && offset <= days
}
