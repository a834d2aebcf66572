package slots

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/model"
)

var monday = time.Date(2025, 3, 3, 15, 4, 0, 0, time.UTC)

func TestGenerate_StepsByDurationAndDropsPartialTail(t *testing.T) {
	shifts := []model.Shift{{Start: 9 * time.Hour, End: 10*time.Hour + 40*time.Minute}}
	got := slices.Collect(Generate(monday, shifts, 30*time.Minute))

	require.Len(t, got, 3)
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, day.Add(9*time.Hour), got[0].StartsAt)
	assert.Equal(t, day.Add(10*time.Hour), got[2].StartsAt)
	assert.Equal(t, day.Add(10*time.Hour+30*time.Minute), got[2].EndsAt)
}

func TestGenerate_ShortShiftYieldsNothing(t *testing.T) {
	shifts := []model.Shift{{Start: 9 * time.Hour, End: 9*time.Hour + 20*time.Minute}}
	assert.Empty(t, slices.Collect(Generate(monday, shifts, 30*time.Minute)))
	assert.Empty(t, slices.Collect(Generate(monday, nil, 30*time.Minute)))
	assert.Empty(t, slices.Collect(Generate(monday, shifts, 0)))
}

func TestGenerate_NonOverlappingAcrossShifts(t *testing.T) {
	shifts := []model.Shift{
		{Start: 13 * time.Hour, End: 14 * time.Hour},
		{Start: 9 * time.Hour, End: 10 * time.Hour},
		{Start: 9*time.Hour + 30*time.Minute, End: 11 * time.Hour},
	}
	got := slices.Collect(Generate(monday, shifts, 30*time.Minute))

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].StartsAt.Before(got[i-1].EndsAt), "slot %d overlaps previous", i)
	}
	// 9:00, 9:30, 10:00, 10:30, 13:00, 13:30
	assert.Len(t, got, 6)
}

func TestGenerate_StopsWhenConsumerStops(t *testing.T) {
	shifts := []model.Shift{{Start: 0, End: 24 * time.Hour}}
	n := 0
	for range Generate(monday, shifts, time.Minute) {
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)
}
