package scheduler

import (
	"slices"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
)

type scheduledJob struct {
	name     string
	spec     string
	schedule cron.Schedule
	nextRun  time.Time
}

// Table holds the next trigger time of every schedulable job. Jobs whose cron
// expression does not parse are left out until the configuration changes.
type Table struct {
	jobs   map[string]*scheduledJob
	logger *logrus.Entry
}

// BuildTable schedules the enabled jobs relative to now.
func BuildTable(jobs []config.SummaryJob, now time.Time, logger *logrus.Entry) *Table {
	t := &Table{jobs: make(map[string]*scheduledJob), logger: logger}
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		log := logger.WithFields(logrus.Fields{"job": job.Name, "cron": job.Cron})
		if _, dup := t.jobs[job.Name]; dup {
			log.Warn("Duplicate job name, keeping the first definition")
			continue
		}

		schedule, err := cron.ParseStandard(job.Cron)
		if err != nil {
			log.WithError(errs.Schedule(err, "invalid cron expression %q", job.Cron)).
				Error("Job excluded from schedule")
			continue
		}

		sj := &scheduledJob{name: job.Name, spec: job.Cron, schedule: schedule, nextRun: schedule.Next(now)}
		t.jobs[job.Name] = sj
		log.WithField("next_run", sj.nextRun.Format(time.RFC3339)).Info("Job scheduled")
	}
	return t
}

// Due returns the names of the jobs whose next run is not after now, sorted by name.
func (t *Table) Due(now time.Time) []string {
	var due []string
	for name, j := range t.jobs {
		// A zero next run means the expression never fires again.
		if !j.nextRun.IsZero() && !j.nextRun.After(now) {
			due = append(due, name)
		}
	}
	slices.Sort(due)
	return due
}

// Reschedule moves the job to its first trigger strictly after now. Missed
// windows in between are skipped.
func (t *Table) Reschedule(name string, now time.Time) {
	j, ok := t.jobs[name]
	if !ok {
		return
	}
	j.nextRun = j.schedule.Next(now)
	t.logger.WithFields(logrus.Fields{
		"job":      name,
		"next_run": j.nextRun.Format(time.RFC3339),
	}).Debug("Next run computed")
}

// NextRun returns the next trigger time of the job.
func (t *Table) NextRun(name string) (time.Time, bool) {
	j, ok := t.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.nextRun, true
}

// Names returns the scheduled job names in order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of scheduled jobs.
func (t *Table) Len() int { return len(t.jobs) }
