package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/errs"
)

type jobStateFile struct {
	LastSent map[string]string `json:"last_sent"`
}

// JobStateStore remembers when each summary job last delivered a report.
type JobStateStore struct {
	path   string
	logger *logrus.Entry
	mu     sync.Mutex
}

func NewJobStateStore(path string, logger *logrus.Entry) *JobStateStore {
	return &JobStateStore{path: path, logger: logger}
}

// RecordSent stores at as the last delivery time of the job.
func (s *JobStateStore) RecordSent(job string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load()
	st.LastSent[job] = at.Format(time.RFC3339)
	if err := writeJSON(s.path, st); err != nil {
		s.logger.WithError(err).WithField("job", job).Warn("Could not save scheduler state")
		return err
	}
	return nil
}

// LastSent returns the last delivery time of the job, if one was recorded.
func (s *JobStateStore) LastSent(job string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.load().LastSent[job]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.WithField("job", job).Warnf("Ignoring malformed last_sent value %q", raw)
		return time.Time{}, false
	}
	return t, true
}

func (s *JobStateStore) load() jobStateFile {
	st := jobStateFile{LastSent: make(map[string]string)}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(errs.StateIO(err, "read %s", s.path)).Warn("Could not read scheduler state, starting empty")
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.WithError(errs.StateIO(err, "decode %s", s.path)).Warn("Scheduler state file is corrupt, starting empty")
		return jobStateFile{LastSent: make(map[string]string)}
	}
	if st.LastSent == nil {
		st.LastSent = make(map[string]string)
	}
	return st
}

// writeJSON replaces path atomically with the indented JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.StateIO(err, "encode %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.StateIO(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.StateIO(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.StateIO(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errs.StateIO(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.StateIO(err, "replace %s", path)
	}
	return nil
}
