package types

import (
	"time"
	_ "time/tzdata"
)

const (
	DateLayout = "2006-01-02"
	// Registry timestamp shape. The offset keeps its colon separator; the
	// registry rejects the bare +0200 form.
	TimestampLayout = "2006-01-02T15:04:05-07:00"
)

var amsterdam *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		loc = time.FixedZone("CET", 3600)
	}
	amsterdam = loc
}

func FormatDate(t time.Time) string {
	return t.In(amsterdam).Format(DateLayout)
}

// FormatTimestamp serializes a timestamp the way the registry expects:
// Europe/Amsterdam wall time with an explicit +HH:MM offset.
func FormatTimestamp(t time.Time) string {
	return t.In(amsterdam).Format(TimestampLayout)
}

// DatePart trims a registry timestamp down to its YYYY-MM-DD prefix.
func DatePart(timestamp string) string {
	if idx := len(DateLayout); len(timestamp) > idx {
		return timestamp[:idx]
	}
	return timestamp
}
