package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/executor/httpexec"
	"github.com/minisource/jobscheduler/internal/trigger"
)

// Trigger and CallableRef are Go interfaces with no textual form of
// their own (spec.md §9 Design Notes calls this out: the source
// ecosystem persists a "module_path:object_path" string; Go has
// nothing equivalent to look up by name). A SQL-backed store has to
// round-trip them through a tagged encoding instead, so this codec is
// the one place sqlstore knows about concrete trigger/callable types.
// Adding a new trigger or callable kind means adding a case here.

const (
	triggerKindDate     = "date"
	triggerKindInterval = "interval"
	triggerKindCron     = "cron"
)

type dateTriggerConfig struct {
	At time.Time `json:"at"`
}

type intervalTriggerConfig struct {
	StartAt time.Time     `json:"start_at"`
	Every   time.Duration `json:"every"`
	EndAt   time.Time     `json:"end_at,omitempty"`
}

type cronTriggerConfig struct {
	Expr  string    `json:"expr"`
	EndAt time.Time `json:"end_at,omitempty"`
}

func encodeTrigger(t core.Trigger) (kind string, config []byte, err error) {
	switch v := t.(type) {
	case trigger.Date:
		config, err = json.Marshal(dateTriggerConfig{At: v.At})
		return triggerKindDate, config, err
	case trigger.Interval:
		config, err = json.Marshal(intervalTriggerConfig{StartAt: v.StartAt, Every: v.Every, EndAt: v.EndAt})
		return triggerKindInterval, config, err
	case trigger.Cron:
		config, err = json.Marshal(cronTriggerConfig{Expr: v.String()})
		return triggerKindCron, config, err
	default:
		return "", nil, fmt.Errorf("sqlstore: trigger type %T has no persistence encoding", t)
	}
}

func decodeTrigger(kind string, config []byte) (core.Trigger, error) {
	switch kind {
	case triggerKindDate:
		var c dateTriggerConfig
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, err
		}
		return trigger.NewDate(c.At), nil
	case triggerKindInterval:
		var c intervalTriggerConfig
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, err
		}
		if c.EndAt.IsZero() {
			return trigger.NewInterval(c.StartAt, c.Every), nil
		}
		return trigger.NewIntervalWithEnd(c.StartAt, c.Every, c.EndAt), nil
	case triggerKindCron:
		var c cronTriggerConfig
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, err
		}
		if c.EndAt.IsZero() {
			return trigger.NewCron(c.Expr)
		}
		return trigger.NewCronWithEnd(c.Expr, c.EndAt)
	default:
		return nil, fmt.Errorf("sqlstore: unknown trigger kind %q", kind)
	}
}

const (
	callableKindNamed   = "named"
	callableKindHTTP    = "http"
)

type namedCallableConfig struct {
	Name string `json:"name"`
}

func encodeCallable(c core.CallableRef) (kind string, config []byte, err error) {
	switch v := c.(type) {
	case core.NamedCallable:
		config, err = json.Marshal(namedCallableConfig{Name: v.Name})
		return callableKindNamed, config, err
	case httpexec.Target:
		config, err = json.Marshal(v)
		return callableKindHTTP, config, err
	default:
		return "", nil, fmt.Errorf("sqlstore: callable ref type %T has no persistence encoding (core.DirectCallable cannot be persisted: it holds a function value)", c)
	}
}

func decodeCallable(kind string, config []byte) (core.CallableRef, error) {
	switch kind {
	case callableKindNamed:
		var c namedCallableConfig
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, err
		}
		return core.NamedCallable{Name: c.Name}, nil
	case callableKindHTTP:
		var t httpexec.Target
		if err := json.Unmarshal(config, &t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("sqlstore: unknown callable kind %q", kind)
	}
}
