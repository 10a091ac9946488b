package app

import (
	"context"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/domain/detection"
	idb "github.com/HurleySk/robo-birder/internal/infra/database"
)

var testNow = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeDB is an in-memory notes table.
type fakeDB struct {
	mu         sync.Mutex
	rows       map[int64]*detection.Detection
	images     map[string]string
	summary    []detection.SpeciesSummary
	hourly     map[int]int
	daily      map[string]int
	maxErr     error
	listErr    error
	getErr     map[int64]error // listed, fetch fails
	ghosts     []int64         // listed, no row
	countErr   error
	imageErr   error
	summaryErr error

	imageLookups []string
	hourlyCalls  int
	dailyCalls   int
}

func newFakeDB(rows ...*detection.Detection) *fakeDB {
	db := &fakeDB{
		rows:   make(map[int64]*detection.Detection),
		images: make(map[string]string),
		getErr: make(map[int64]error),
	}
	for _, r := range rows {
		db.rows[r.ID] = r
	}
	return db
}

func (f *fakeDB) add(d *detection.Detection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[d.ID] = d
}

func (f *fakeDB) GetByID(_ context.Context, id int64) (*detection.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.rows[id]
	if !ok {
		return nil, idb.ErrDetectionNotFound
	}
	return d, nil
}

func (f *fakeDB) GetLatest(ctx context.Context) (*detection.Detection, error) {
	id, err := f.MaxID(ctx)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, idb.ErrDetectionNotFound
	}
	return f.GetByID(ctx, id)
}

func (f *fakeDB) MaxID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxErr != nil {
		return 0, f.maxErr
	}
	var maxID int64
	for id := range f.rows {
		maxID = max(maxID, id)
	}
	return maxID, nil
}

func (f *fakeDB) ListIDsAfter(_ context.Context, after int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []int64
	for id := range f.rows {
		if id > after {
			ids = append(ids, id)
		}
	}
	for id := range f.getErr {
		if id > after && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range f.ghosts {
		if id > after && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeDB) SpeciesCount(_ context.Context, scientificName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, d := range f.rows {
		if d.ScientificName == scientificName {
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) SpeciesCountSince(_ context.Context, scientificName string, since time.Time, beforeID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, d := range f.rows {
		if d.ScientificName != scientificName || d.BeginTime.Before(since) {
			continue
		}
		if beforeID > 0 && d.ID >= beforeID {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeDB) CachedImageURL(_ context.Context, scientificName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageLookups = append(f.imageLookups, scientificName)
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.images[scientificName], nil
}

func (f *fakeDB) SummaryForPeriod(context.Context, time.Time) (int, []detection.SpeciesSummary, error) {
	if f.summaryErr != nil {
		return 0, nil, f.summaryErr
	}
	total := 0
	for _, s := range f.summary {
		total += s.Count
	}
	return total, slices.Clone(f.summary), nil
}

func (f *fakeDB) HourlyBreakdown(context.Context, time.Time) (map[int]int, error) {
	f.hourlyCalls++
	return f.hourly, nil
}

func (f *fakeDB) DailyBreakdown(context.Context, time.Time) (map[string]int, error) {
	f.dailyCalls++
	return f.daily, nil
}

// fakeDispatcher records every alert and can be told to fail.
type fakeDispatcher struct {
	mu         sync.Mutex
	name       string
	err        error
	newSpecies []*alert.NewSpecies
	sightings  []*alert.Sighting
	summaries  []*alert.Summary
	tests      int
}

func (f *fakeDispatcher) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeDispatcher) SendNewSpecies(_ context.Context, a *alert.NewSpecies) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newSpecies = append(f.newSpecies, a)
	return f.err
}

func (f *fakeDispatcher) SendDetection(_ context.Context, a *alert.Sighting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sightings = append(f.sightings, a)
	return f.err
}

func (f *fakeDispatcher) SendSummary(_ context.Context, s *alert.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return f.err
}

func (f *fakeDispatcher) SendTest(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests++
	return f.err
}

func (f *fakeDispatcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.newSpecies) + len(f.sightings) + len(f.summaries) + f.tests
}

// fakeCooldowns is an in-memory cooldown store.
type fakeCooldowns struct {
	last   map[string]time.Time
	setErr error
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{last: make(map[string]time.Time)}
}

func (f *fakeCooldowns) IsOnCooldown(species string, cooldownMinutes int, now time.Time) bool {
	if cooldownMinutes <= 0 {
		return false
	}
	last, ok := f.last[species]
	return ok && now.Sub(last) < time.Duration(cooldownMinutes)*time.Minute
}

func (f *fakeCooldowns) Set(species string, now time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.last[species] = now
	return nil
}

// fakeJobState records delivery times.
type fakeJobState struct {
	sent map[string]time.Time
	err  error
}

func (f *fakeJobState) RecordSent(job string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string]time.Time)
	}
	f.sent[job] = at
	return nil
}

var errBoom = errors.New("boom")

func cardinal(id int64, at time.Time, confidence float64) *detection.Detection {
	return &detection.Detection{
		ID:             id,
		BeginTime:      at,
		ScientificName: "Cardinalis cardinalis",
		CommonName:     "Northern Cardinal",
		Confidence:     confidence,
	}
}

func robin(id int64, at time.Time, confidence float64) *detection.Detection {
	return &detection.Detection{
		ID:             id,
		BeginTime:      at,
		ScientificName: "Turdus migratorius",
		CommonName:     "American Robin",
		Confidence:     confidence,
	}
}
