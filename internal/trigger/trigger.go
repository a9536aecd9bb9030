// Package trigger provides the concrete core.Trigger implementations a
// job can be scheduled with: a one-shot date, a fixed interval, and a
// cron expression (spec.md §3 "trigger").
package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Date fires exactly once, at At.
type Date struct {
	At time.Time
}

// NewDate returns a Date trigger that fires once at t.
func NewDate(t time.Time) Date { return Date{At: t} }

func (d Date) NextFireTime(after time.Time) (time.Time, bool) {
	if after.Before(d.At) {
		return d.At, true
	}
	return time.Time{}, false
}

// Interval fires every Every, starting at StartAt (or the first fire
// time at/after StartAt when used as the job's initial NextRunTime).
// EndAt, if non-zero, bounds the last possible fire time.
type Interval struct {
	StartAt time.Time
	Every   time.Duration
	EndAt   time.Time
}

// NewInterval returns an Interval trigger. every must be positive.
func NewInterval(start time.Time, every time.Duration) Interval {
	return Interval{StartAt: start, Every: every}
}

// NewIntervalWithEnd is NewInterval with an inclusive end bound.
func NewIntervalWithEnd(start time.Time, every time.Duration, end time.Time) Interval {
	return Interval{StartAt: start, Every: every, EndAt: end}
}

func (i Interval) NextFireTime(after time.Time) (time.Time, bool) {
	if i.Every <= 0 {
		return time.Time{}, false
	}
	var next time.Time
	if after.Before(i.StartAt) {
		next = i.StartAt
	} else {
		elapsed := after.Sub(i.StartAt)
		steps := elapsed/i.Every + 1
		next = i.StartAt.Add(steps * i.Every)
	}
	if !i.EndAt.IsZero() && next.After(i.EndAt) {
		return time.Time{}, false
	}
	return next, true
}

// Cron fires according to a standard five-field cron expression (or a
// descriptor such as @hourly), parsed with robfig/cron's ParseStandard;
// six-field expressions with a seconds field are rejected.
type Cron struct {
	expr     string
	schedule cron.Schedule
	endAt    time.Time
}

// NewCron parses expr with cron.ParseStandard (five fields, no seconds
// field) and returns a Cron trigger.
func NewCron(expr string) (Cron, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return Cron{}, fmt.Errorf("trigger: invalid cron expression %q: %w", expr, err)
	}
	return Cron{expr: expr, schedule: schedule}, nil
}

// NewCronWithEnd is NewCron with an inclusive end bound.
func NewCronWithEnd(expr string, end time.Time) (Cron, error) {
	c, err := NewCron(expr)
	if err != nil {
		return Cron{}, err
	}
	c.endAt = end
	return c, nil
}

func (c Cron) String() string { return c.expr }

func (c Cron) NextFireTime(after time.Time) (time.Time, bool) {
	next := c.schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, false
	}
	if !c.endAt.IsZero() && next.After(c.endAt) {
		return time.Time{}, false
	}
	return next, true
}
