package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPlanExplicitDateWinsOverEverything(t *testing.T) {
	dates, err := PlanDates(Plan{
		ExplicitDate: "2025-08-10",
		Historical:   true,
		Production:   true,
	}, State{LastExtractionDate: "2025-08-20"}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-10"}, dates)
}

func TestPlanExplicitDateValidated(t *testing.T) {
	_, err := PlanDates(Plan{ExplicitDate: "10/08/2025"}, State{}, day("2025-08-30"))
	assert.Error(t, err)
}

func TestPlanHistoricalCoversBackfillRange(t *testing.T) {
	dates, err := PlanDates(Plan{
		Historical:    true,
		BackfillStart: "2025-08-28",
	}, State{LastExtractionDate: "2025-08-29"}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-28", "2025-08-29", "2025-08-30"}, dates)
}

func TestPlanFreshStateFallsBackToBackfill(t *testing.T) {
	dates, err := PlanDates(Plan{
		BackfillStart: "2025-08-29",
	}, State{}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-29", "2025-08-30"}, dates)
}

func TestPlanProductionPicksOnlyYesterday(t *testing.T) {
	dates, err := PlanDates(Plan{Production: true},
		State{LastExtractionDate: "2025-08-25"}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-29"}, dates)
}

func TestPlanProductionUpToDateDoesNothing(t *testing.T) {
	dates, err := PlanDates(Plan{Production: true},
		State{LastExtractionDate: "2025-08-29"}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestPlanProductionWestOfUTCUsesLocalCalendarDay(t *testing.T) {
	// 06:00 on Aug 31 in UTC-3 is already Aug 31 09:00 UTC; yesterday must
	// still be the local Aug 30, not Aug 29.
	brt := time.FixedZone("-03", -3*60*60)
	now := time.Date(2025, 8, 31, 6, 0, 0, 0, brt)

	dates, err := PlanDates(Plan{Production: true},
		State{LastExtractionDate: "2025-08-28"}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-30"}, dates)
}

func TestPlanCatchUpWestOfUTCIncludesToday(t *testing.T) {
	brt := time.FixedZone("-03", -3*60*60)
	now := time.Date(2025, 8, 31, 6, 0, 0, 0, brt)

	dates, err := PlanDates(Plan{},
		State{LastExtractionDate: "2025-08-29"}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-30", "2025-08-31"}, dates)
}

func TestPlanDevelopmentCatchesUpThroughToday(t *testing.T) {
	dates, err := PlanDates(Plan{},
		State{LastExtractionDate: "2025-08-27"}, day("2025-08-30"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-28", "2025-08-29", "2025-08-30"}, dates)
}
