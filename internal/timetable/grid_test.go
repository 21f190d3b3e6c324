package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func periods(starts ...string) []Period {
	result := make([]Period, 0, len(starts))
	for i, start := range starts {
		begin := MustClock(start)
		result = append(result, Period{Number: i + 1, Start: begin, End: begin + 45})
	}
	return result
}

func TestBuildGridOrdersDaysThenPeriods(t *testing.T) {
	slots, err := BuildGrid(GridConfig{
		Days:    []int{3, 1, 3, 9},
		Periods: []Period{{Number: 2, Start: MustClock("08:00"), End: MustClock("08:45")}, {Number: 1, Start: MustClock("07:00"), End: MustClock("07:45")}},
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)

	assert.Equal(t, Slot{Index: 0, Day: 1, Period: 1, Start: MustClock("07:00"), End: MustClock("07:45")}, slots[0])
	assert.Equal(t, 1, slots[1].Day)
	assert.Equal(t, 2, slots[1].Period)
	assert.Equal(t, 3, slots[2].Day)
	assert.Equal(t, 3, slots[3].Index)
}

func TestBuildGridSkipsBreaks(t *testing.T) {
	template := periods("07:00", "08:00", "09:00")
	template[1].Break = true

	slots, err := BuildGrid(GridConfig{Days: []int{1}, Periods: template})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 3, slots[1].Period)
}

func TestBuildGridConfigErrors(t *testing.T) {
	cases := map[string]GridConfig{
		"no days":     {Periods: periods("07:00")},
		"no periods":  {Days: []int{1}},
		"only breaks": {Days: []int{1}, Periods: []Period{{Number: 1, Start: 420, End: 450, Break: true}}},
		"inverted":    {Days: []int{1}, Periods: []Period{{Number: 1, Start: 450, End: 420}}},
		"overlap":     {Days: []int{1}, Periods: []Period{{Number: 1, Start: 420, End: 480}, {Number: 2, Start: 450, End: 500}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildGrid(cfg)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:30:00")
	require.NoError(t, err)
	assert.Equal(t, Clock(450), c)
	assert.Equal(t, "07:30", c.String())

	for _, raw := range []string{"", "7", "25:00", "07:61", "24:30", "aa:bb"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}
