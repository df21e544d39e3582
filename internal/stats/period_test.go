package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodSince(t *testing.T) {
	now := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-24*time.Hour), PeriodDay.Since(now))
	assert.Equal(t, now.Add(-7*24*time.Hour), PeriodWeek.Since(now))
	assert.Equal(t, now.Add(-30*24*time.Hour), PeriodMonth.Since(now))
	assert.Equal(t, now.Add(-365*24*time.Hour), PeriodYear.Since(now))
	assert.True(t, PeriodTotal.Since(now).IsZero())
}

func TestPeriodValid(t *testing.T) {
	for _, p := range Periods {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Period("fortnight").Valid())
	assert.False(t, Period("").Valid())
}
