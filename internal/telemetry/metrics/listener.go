package metrics

import (
	"github.com/minisource/jobscheduler/internal/core"
)

// Listener returns a core.Listener that updates the package's
// Prometheus collectors from scheduler events. Subscribe it with
// core.EventAll so every code path (add/remove/execute/error/missed)
// is reflected.
func Listener() core.Listener {
	return func(evt core.Event) {
		switch evt.Code {
		case core.EventJobAdded:
			JobsAdded.WithLabelValues(evt.StoreAlias).Inc()
		case core.EventJobRemoved:
			JobsRemoved.WithLabelValues(evt.StoreAlias).Inc()
		case core.EventJobExecuted:
			JobExecutions.WithLabelValues(string(evt.JobID), "success").Inc()
		case core.EventJobError:
			JobExecutions.WithLabelValues(string(evt.JobID), "error").Inc()
		case core.EventJobMissed:
			JobsMissed.WithLabelValues(string(evt.JobID)).Inc()
		case core.EventSchedulerStarted:
			SchedulerRunning.Set(1)
		case core.EventSchedulerShutdown:
			SchedulerRunning.Set(0)
		}
	}
}
