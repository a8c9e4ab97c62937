package domain

import (
	"strings"
	"time"
)

// ReportPeriod is the dashboard filter value. The Indonesian names are part of the
// public API (?filter=minggu|bulan|tahun).
type ReportPeriod string

const (
	PeriodWeek  ReportPeriod = "minggu"
	PeriodMonth ReportPeriod = "bulan"
	PeriodYear  ReportPeriod = "tahun"
)

var periodLabels = map[ReportPeriod]string{
	PeriodWeek:  "Last 7 days",
	PeriodMonth: "This month",
	PeriodYear:  "This year",
}

// ParseReportPeriod normalises a filter value. Unknown or empty values fall back to
// the monthly window.
func ParseReportPeriod(raw string) ReportPeriod {
	switch p := ReportPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return p
	default:
		return PeriodMonth
	}
}

// Label returns a human-readable description of the period.
func (p ReportPeriod) Label() string {
	return periodLabels[ParseReportPeriod(string(p))]
}

// ResolvePeriodStart returns the inclusive start of the reporting window.
//
//	minggu: exactly seven days before now
//	bulan:  the first day of now's month at 00:00 in loc
//	tahun:  January 1st of now's year at 00:00 in loc
func ResolvePeriodStart(period ReportPeriod, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)

	switch ParseReportPeriod(string(period)) {
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodYear:
		return time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	}
}
