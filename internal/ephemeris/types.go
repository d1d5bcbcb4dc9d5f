package ephemeris

import (
	"fmt"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// DateLayout is the calendar date format of position files and date lookups.
const DateLayout = "2006-01-02"

// Vector is one recorded heliocentric position.
// Units are those of the source file (kilometers for Horizons KM-S output).
type Vector struct {
	Date string  `json:"date"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// Time parses the vector's calendar date as UTC midnight.
func (v Vector) Time() (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, v.Date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing vector date %q: %w", v.Date, err)
	}
	return t, nil
}

// JD returns the vector's Julian day.
func (v Vector) JD() (float64, error) {
	t, err := v.Time()
	if err != nil {
		return 0, err
	}
	return julian.TimeToJD(t), nil
}

// Span is the time window and step of a Horizons vector table request.
type Span struct {
	Start time.Time
	Stop  time.Time
	Step  string // Horizons STEP_SIZE, e.g. "1 DAYS"
}

// Validate checks the span is non-empty.
func (s Span) Validate() error {
	if !s.Stop.After(s.Start) {
		return fmt.Errorf("span stop %s is not after start %s", s.Stop.Format(DateLayout), s.Start.Format(DateLayout))
	}
	if s.Step == "" {
		return fmt.Errorf("span step is empty")
	}
	return nil
}
