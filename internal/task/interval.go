package task

import (
	"database/sql"
	"fmt"
	"strings"
)

type Frequency string

const (
	Hourly  Frequency = "HOURLY"
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// ParseFrequency accepts the canonical names as well as the unit words used
// on the command line ("day", "weeks", ...).
func ParseFrequency(v string) (Frequency, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v)), "s") {
	case "hourly", "hour":
		return Hourly, nil
	case "daily", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	}
	return "", fmt.Errorf("unknown frequency %q: %w", v, ErrValidation)
}

// MaxOccurrences bounds how many occurrences one series may expand to.
const MaxOccurrences = 5000

// Interval is a recurrence rule. Exactly one of Count and Until terminates it.
type Interval struct {
	Frequency Frequency
	Step      int
	Count     int
	Until     sql.NullTime
	// ByDay is stored and carried along but not used to generate occurrences.
	ByDay string
}

func (iv Interval) Validate() error {
	switch iv.Frequency {
	case Hourly, Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("unknown frequency %q: %w", iv.Frequency, ErrValidation)
	}
	if iv.Step < 1 {
		return fmt.Errorf("step must be positive, got %d: %w", iv.Step, ErrValidation)
	}
	hasCount := iv.Count > 0
	if hasCount == iv.Until.Valid {
		return fmt.Errorf("interval needs exactly one of count or until: %w", ErrValidation)
	}
	if iv.Count < 0 {
		return fmt.Errorf("count must be positive, got %d: %w", iv.Count, ErrValidation)
	}
	if iv.Count > MaxOccurrences {
		return fmt.Errorf("count %d exceeds %d: %w", iv.Count, MaxOccurrences, ErrValidation)
	}
	return nil
}

func (iv Interval) Equal(o Interval) bool {
	return iv.Frequency == o.Frequency &&
		iv.Step == o.Step &&
		iv.Count == o.Count &&
		sameTime(iv.Until, o.Until) &&
		iv.ByDay == o.ByDay
}

func (iv Interval) String() string {
	unit := strings.ToLower(strings.TrimSuffix(string(iv.Frequency), "LY"))
	if iv.Frequency == Daily {
		unit = "day"
	}
	s := fmt.Sprintf("every %d %s", iv.Step, unit)
	if iv.Step != 1 {
		s += "s"
	}
	if iv.Until.Valid {
		return s + " until " + formatTime(iv.Until.Time)
	}
	return fmt.Sprintf("%s, %d times", s, iv.Count)
}
