package trigger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/jobscheduler/internal/trigger"
)

func TestDateFiresOnce(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := trigger.NewDate(at)

	next, ok := d.NextFireTime(at.Add(-time.Minute))
	require.True(t, ok)
	assert.Equal(t, at, next)

	_, ok = d.NextFireTime(at)
	assert.False(t, ok)
}

func TestIntervalAdvancesByStep(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iv := trigger.NewInterval(start, time.Minute)

	next, ok := iv.NextFireTime(start.Add(-time.Second))
	require.True(t, ok)
	assert.Equal(t, start, next)

	next, ok = iv.NextFireTime(start.Add(90 * time.Second))
	require.True(t, ok)
	assert.Equal(t, start.Add(2*time.Minute), next)
}

func TestIntervalRespectsEnd(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	iv := trigger.NewIntervalWithEnd(start, time.Minute, end)

	_, ok := iv.NextFireTime(start.Add(70 * time.Second))
	assert.False(t, ok)
}

func TestCronParsesAndAdvances(t *testing.T) {
	c, err := trigger.NewCron("0 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	next, ok := c.NextFireTime(after)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), next)
}

func TestCronRejectsInvalidExpression(t *testing.T) {
	_, err := trigger.NewCron("not a cron expression")
	assert.Error(t, err)
}
