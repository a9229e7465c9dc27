package model

import (
	"time"

	"dormitory_backend/internals/helpers/apperr"
)

var ErrInvalidPeriod = apperr.Validation("invalid_period", "month must be 1..12 and year 2000..2100")

// Period is one billing month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	return p, p.Validate()
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidPeriod.WithField("month").WithDetail("%d", p.Month)
	}
	if p.Year < 2000 || p.Year > 2100 {
		return ErrInvalidPeriod.WithField("year").WithDetail("%d", p.Year)
	}
	return nil
}

// Previous is the prior calendar month, wrapping the year at January.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Start is 00:00 on the first day of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
}
