package models

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is how often a habit is expected to be completed.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyMonthly Frequency = "monthly"
)

// ErrUnknownFrequency marks a frequency value outside the supported set. It is a
// configuration error, never a user-facing rejection.
var ErrUnknownFrequency = errors.New("unknown habit frequency")

// Period describes the calendar window a frequency works in.
type Period interface {
	// Bounds returns the half-open window [start, end) that contains t.
	Bounds(t time.Time) (time.Time, time.Time)
	// Previous returns the window immediately before the one containing t.
	Previous(t time.Time) (time.Time, time.Time)
	// Same reports whether a and b fall in the same window.
	Same(a, b time.Time) bool
}

type dailyPeriod struct{}

func (dailyPeriod) Bounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func (p dailyPeriod) Previous(t time.Time) (time.Time, time.Time) {
	start, _ := p.Bounds(t)
	return start.AddDate(0, 0, -1), start
}

func (dailyPeriod) Same(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

type monthlyPeriod struct{}

func (monthlyPeriod) Bounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// Previous handles the January rollover through time.Date normalisation.
func (p monthlyPeriod) Previous(t time.Time) (time.Time, time.Time) {
	start, _ := p.Bounds(t)
	return start.AddDate(0, -1, 0), start
}

func (monthlyPeriod) Same(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Period returns the window rules for f, or ErrUnknownFrequency.
func (f Frequency) Period() (Period, error) {
	switch f {
	case FrequencyDaily:
		return dailyPeriod{}, nil
	case FrequencyMonthly:
		return monthlyPeriod{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, string(f))
	}
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	_, err := f.Period()
	return err == nil
}

// ParseFrequency converts client input into a Frequency. An empty string
// defaults to daily.
func ParseFrequency(s string) (Frequency, error) {
	if s == "" {
		return FrequencyDaily, nil
	}
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
	}
	return f, nil
}
