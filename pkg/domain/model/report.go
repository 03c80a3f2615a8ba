package model

import (
	"time"

	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// DailyReportRow joins a day's attendance events for one person. Person may
// be nil when the registry entry was deleted after the record was written.
type DailyReportRow struct {
	Person    *Person
	Record    *AttendanceRecord
	Departure *Departure
}

// Departed reports whether the person has checked out.
func (x *DailyReportRow) Departed() bool {
	return x.Departure != nil
}

// Presence returns the time between arrival and departure, or zero while
// the person is still present.
func (x *DailyReportRow) Presence() time.Duration {
	if x.Record == nil || x.Departure == nil {
		return 0
	}
	return x.Departure.LeftAt.Sub(x.Record.ArrivedAt)
}

// DaySummary aggregates one day of attendance activity.
type DaySummary struct {
	Date       types.DateKey
	Arrivals   int
	Departures int
	Present    int // arrived and not yet departed
}
