package scheduler

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// day D of the tests, local wall clock in UTC.
var dayD = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func job(name, spec string) config.SummaryJob {
	return config.SummaryJob{Name: name, Enabled: true, Cron: spec}
}

func TestTableNextRunIsStrictlyAfterNow(t *testing.T) {
	now := dayD.Add(8*time.Hour + time.Minute) // 08:01 on day D
	table := BuildTable([]config.SummaryJob{job("daily", "0 8 * * *")}, now, quietLogger())

	next, ok := table.NextRun("daily")
	require.True(t, ok)
	assert.Equal(t, dayD.AddDate(0, 0, 1).Add(8*time.Hour), next)

	// Exactly at a trigger time the next run is the following one.
	table = BuildTable([]config.SummaryJob{job("daily", "0 8 * * *")}, dayD.Add(8*time.Hour), quietLogger())
	next, _ = table.NextRun("daily")
	assert.Equal(t, dayD.AddDate(0, 0, 1).Add(8*time.Hour), next)
}

func TestTableDropsInvalidCron(t *testing.T) {
	logger, hook := test.NewNullLogger()
	jobs := []config.SummaryJob{
		job("broken", "* * *"),
		job("hourly", "0 * * * *"),
		job("daily", "@daily"),
	}
	table := BuildTable(jobs, dayD, logrus.NewEntry(logger))

	assert.Equal(t, []string{"daily", "hourly"}, table.Names())
	_, ok := table.NextRun("broken")
	assert.False(t, ok)

	var scheduleErrors int
	for _, e := range hook.AllEntries() {
		if err, ok := e.Data[logrus.ErrorKey].(error); ok && errors.Is(err, errs.ErrSchedule) {
			scheduleErrors++
			assert.Equal(t, logrus.ErrorLevel, e.Level)
			assert.Equal(t, "broken", e.Data["job"])
		}
	}
	assert.Equal(t, 1, scheduleErrors)
}

func TestTableSkipsDisabledAndDuplicateJobs(t *testing.T) {
	disabled := job("weekly", "0 9 * * 1")
	disabled.Enabled = false
	jobs := []config.SummaryJob{
		job("daily", "0 8 * * *"),
		job("daily", "0 20 * * *"),
		disabled,
	}
	table := BuildTable(jobs, dayD, quietLogger())

	assert.Equal(t, 1, table.Len())
	next, _ := table.NextRun("daily")
	assert.Equal(t, dayD.Add(8*time.Hour), next)
}

func TestTableFiresOncePerMissedWindow(t *testing.T) {
	table := BuildTable([]config.SummaryJob{job("daily", "0 8 * * *"), job("hourly", "0 * * * *")}, dayD, quietLogger())

	// Three days pass without a tick.
	late := dayD.AddDate(0, 0, 3).Add(10*time.Hour + 30*time.Minute)
	due := table.Due(late)
	assert.Equal(t, []string{"daily", "hourly"}, due)

	for _, name := range due {
		table.Reschedule(name, late)
	}
	assert.Empty(t, table.Due(late))

	next, _ := table.NextRun("daily")
	assert.Equal(t, dayD.AddDate(0, 0, 4).Add(8*time.Hour), next)
	next, _ = table.NextRun("hourly")
	assert.Equal(t, late.Truncate(time.Hour).Add(time.Hour), next)

	// Unknown names are ignored.
	table.Reschedule("missing", late)
}

func TestTableUsesLocationOfNow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, ny)

	table := BuildTable([]config.SummaryJob{job("daily", "0 8 * * *")}, now, quietLogger())
	next, _ := table.NextRun("daily")
	assert.Equal(t, time.Date(2026, 5, 11, 8, 0, 0, 0, ny), next)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (r *fakeRunner) RunJob(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, name)
	return r.err
}

func (r *fakeRunner) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

type fakePoller struct{ polls atomic.Int32 }

func (p *fakePoller) Poll(context.Context) int {
	p.polls.Add(1)
	return 0
}

type fakeReloader struct {
	cfg   *config.AppConfig
	err   error
	calls int
}

func (r *fakeReloader) Reload() (*config.AppConfig, error) {
	r.calls++
	return r.cfg, r.err
}

func appConfig(jobs ...config.SummaryJob) *config.AppConfig {
	return &config.AppConfig{
		Summaries: jobs,
		Scheduler: config.SchedulerConfig{PollInterval: 10 * time.Second, Timezone: "UTC"},
	}
}

func TestTickRunsDueJobsThenPolls(t *testing.T) {
	clk := &fakeClock{now: dayD.Add(7*time.Hour + 59*time.Minute)}
	runner := &fakeRunner{err: errors.New("webhook down")}
	poller := &fakePoller{}
	s := NewNotificationScheduler(appConfig(job("daily", "0 8 * * *")), runner, poller, nil, nil, quietLogger(), clk.Now)

	s.Tick(context.Background())
	assert.Empty(t, runner.Runs())
	assert.Equal(t, int32(1), poller.polls.Load())

	clk.Set(dayD.Add(8*time.Hour + 5*time.Second))
	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, []string{"daily"}, runner.Runs(), "a failed job is rescheduled, not retried")
	assert.Equal(t, int32(3), poller.polls.Load())

	next, _ := s.Table().NextRun("daily")
	assert.Equal(t, dayD.AddDate(0, 0, 1).Add(8*time.Hour), next)
}

func TestTickAppliesReloadAtStart(t *testing.T) {
	clk := &fakeClock{now: dayD}
	runner := &fakeRunner{}
	reloader := &fakeReloader{cfg: appConfig(job("hourly", "0 * * * *"))}
	s := NewNotificationScheduler(appConfig(job("daily", "0 8 * * *")), runner, &fakePoller{}, reloader, nil, quietLogger(), clk.Now)

	s.RequestReload()
	assert.Zero(t, reloader.calls, "reload waits for the next tick")

	s.Tick(context.Background())
	assert.Equal(t, 1, reloader.calls)
	assert.Equal(t, []string{"hourly"}, s.Table().Names())

	// The flag is cleared.
	s.Tick(context.Background())
	assert.Equal(t, 1, reloader.calls)
}

func TestFailedReloadKeepsCurrentSchedule(t *testing.T) {
	clk := &fakeClock{now: dayD}
	reloader := &fakeReloader{err: errs.Config(nil, "bad yaml")}
	s := NewNotificationScheduler(appConfig(job("daily", "0 8 * * *")), &fakeRunner{}, &fakePoller{}, reloader, nil, quietLogger(), clk.Now)

	s.RequestReload()
	s.Tick(context.Background())
	assert.Equal(t, 1, reloader.calls)
	assert.Equal(t, []string{"daily"}, s.Table().Names())
}

func TestReloadFixesInvalidCron(t *testing.T) {
	clk := &fakeClock{now: dayD}
	reloader := &fakeReloader{cfg: appConfig(job("daily", "0 8 * * *"))}
	s := NewNotificationScheduler(appConfig(job("daily", "0 8 *")), &fakeRunner{}, &fakePoller{}, reloader, nil, quietLogger(), clk.Now)
	assert.Zero(t, s.Table().Len())

	s.RequestReload()
	s.Tick(context.Background())
	assert.Equal(t, 1, s.Table().Len())
}

func TestRunStopsAfterCurrentTick(t *testing.T) {
	clk := &fakeClock{now: dayD}
	poller := &fakePoller{}
	cfg := appConfig()
	cfg.Scheduler.PollInterval = 5 * time.Millisecond
	s := NewNotificationScheduler(cfg, &fakeRunner{}, poller, nil, nil, quietLogger(), clk.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return poller.polls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	polls := poller.polls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polls, poller.polls.Load())
}

// blockingPoller holds the tick open until release is closed.
type blockingPoller struct {
	entered chan struct{}
	release chan struct{}
	record  func(string)
}

func (p *blockingPoller) Poll(context.Context) int {
	close(p.entered)
	<-p.release
	p.record("poll")
	return 0
}

func TestExclusiveWaitsForRunningTick(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(step string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, step)
	}
	steps := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), order...)
	}

	poller := &blockingPoller{entered: make(chan struct{}), release: make(chan struct{}), record: record}
	clk := &fakeClock{now: dayD}
	s := NewNotificationScheduler(appConfig(), &fakeRunner{}, poller, nil, nil, quietLogger(), clk.Now)

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		s.Tick(context.Background())
	}()
	<-poller.entered

	commandDone := make(chan error, 1)
	go func() {
		commandDone <- s.Exclusive(context.Background(), func(context.Context) error {
			record("command")
			return nil
		})
	}()

	assert.Never(t, func() bool { return len(steps()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(poller.release)
	<-tickDone
	require.NoError(t, <-commandDone)
	assert.Equal(t, []string{"poll", "command"}, steps())
}

func TestExclusiveReturnsError(t *testing.T) {
	s := NewNotificationScheduler(appConfig(), &fakeRunner{}, nil, nil, nil, quietLogger(), (&fakeClock{now: dayD}).Now)
	err := s.Exclusive(context.Background(), func(context.Context) error { return errors.New("webhook down") })
	assert.EqualError(t, err, "webhook down")
}
