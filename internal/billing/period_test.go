package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodWindow(t *testing.T) {
	p, err := NewPeriod(2025, 3)
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.February, 21), p.Start())
	assert.Equal(t, date(2025, time.March, 20), p.End())
	assert.Equal(t, date(2025, time.March, 21), p.EndExclusive())
	assert.Equal(t, "2025-03", p.String())

	assert.True(t, p.Contains(date(2025, time.February, 21)))
	assert.True(t, p.Contains(time.Date(2025, time.March, 20, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(date(2025, time.February, 20)))
	assert.False(t, p.Contains(date(2025, time.March, 21)))
}

func TestPeriodAcrossYear(t *testing.T) {
	p, err := NewPeriod(2025, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.December, 21), p.Start())
	assert.Equal(t, Period{Year: 2024, Month: time.December}, p.Previous())
}

func TestNewPeriodValidation(t *testing.T) {
	_, err := NewPeriod(2025, 13)
	assert.Error(t, err)
	_, err = NewPeriod(2025, 0)
	assert.Error(t, err)
	_, err = NewPeriod(1999, 5)
	assert.Error(t, err)
}

func TestPeriodFor(t *testing.T) {
	assert.Equal(t, Period{Year: 2025, Month: time.March}, PeriodFor(date(2025, time.March, 20)))
	assert.Equal(t, Period{Year: 2025, Month: time.April}, PeriodFor(date(2025, time.March, 21)))
	assert.Equal(t, Period{Year: 2026, Month: time.January}, PeriodFor(date(2025, time.December, 25)))
}

func TestLastClosedPeriod(t *testing.T) {
	assert.Equal(t, Period{Year: 2025, Month: time.March}, LastClosedPeriod(date(2025, time.March, 21)))
	assert.Equal(t, Period{Year: 2025, Month: time.February}, LastClosedPeriod(date(2025, time.March, 20)))
}

func TestDueDate(t *testing.T) {
	issued := time.Date(2025, time.March, 21, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, date(2025, time.April, 20), DueDate(issued, 30))
}
