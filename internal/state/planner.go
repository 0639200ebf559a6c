package state

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Plan describes which dates a run should extract.
type Plan struct {
	ExplicitDate  string // single YYYY-MM-DD, overrides everything else
	Historical    bool   // full backfill from BackfillStart
	Production    bool   // incremental runs extract at most yesterday
	BackfillStart string
}

// PlanDates resolves the plan against the current state into an ordered
// list of YYYY-MM-DD dates. today is injected for testability.
func PlanDates(p Plan, st State, today time.Time) ([]string, error) {
	if p.ExplicitDate != "" {
		if _, err := time.Parse(dateLayout, p.ExplicitDate); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", p.ExplicitDate, err)
		}
		return []string{p.ExplicitDate}, nil
	}

	// The caller's local calendar day, re-anchored to a UTC midnight so it
	// compares cleanly with the parsed watermark dates. Truncate would round
	// to UTC midnights directly and shift the date for most of the day west
	// of UTC.
	today, _ = time.Parse(dateLayout, today.Format(dateLayout))

	if p.Historical || st.LastExtractionDate == "" {
		start, err := time.Parse(dateLayout, p.BackfillStart)
		if err != nil {
			return nil, fmt.Errorf("invalid backfill start %q: %w", p.BackfillStart, err)
		}
		return dateRange(start, today), nil
	}

	last, err := time.Parse(dateLayout, st.LastExtractionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid last extraction date %q: %w", st.LastExtractionDate, err)
	}

	if p.Production {
		// Production runs only ever pick up yesterday; published data for
		// the current day is still mutating.
		yesterday := today.AddDate(0, 0, -1)
		if !yesterday.After(last) {
			return nil, nil
		}
		return []string{yesterday.Format(dateLayout)}, nil
	}

	// Development catch-up: everything after the watermark through today.
	return dateRange(last.AddDate(0, 0, 1), today), nil
}

func dateRange(start, end time.Time) []string {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}
