// Package state persists the notifier's small bits of memory between runs:
// per-species cooldowns and the last delivery time of each summary job.
//
// Both files are best effort. An unreadable or corrupt file is treated as
// empty and a failed write is logged, never fatal.
package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HurleySk/robo-birder/internal/errs"
)

// CooldownRetention is how long a cooldown entry survives before it is pruned.
const CooldownRetention = 24 * time.Hour

// CooldownStore maps a species to the epoch seconds of its last delivered alert.
type CooldownStore struct {
	path   string
	logger *logrus.Entry
	mu     sync.Mutex
}

func NewCooldownStore(path string, logger *logrus.Entry) *CooldownStore {
	return &CooldownStore{path: path, logger: logger}
}

// IsOnCooldown reports whether species was notified less than cooldownMinutes
// ago. A non-positive cooldown disables the check.
func (s *CooldownStore) IsOnCooldown(species string, cooldownMinutes int, now time.Time) bool {
	if cooldownMinutes <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.load()[species]
	if !ok {
		return false
	}
	elapsed := epochSeconds(now) - last
	return elapsed < float64(cooldownMinutes*60)
}

// Set records now as the last notification of species and prunes entries older
// than CooldownRetention.
func (s *CooldownStore) Set(species string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	nowSec := epochSeconds(now)
	entries[species] = nowSec

	cutoff := nowSec - CooldownRetention.Seconds()
	for name, ts := range entries {
		if ts < cutoff {
			delete(entries, name)
		}
	}

	if err := writeJSON(s.path, entries); err != nil {
		s.logger.WithError(err).Warn("Could not save cooldowns")
		return err
	}
	return nil
}

// Entries returns a copy of the persisted cooldowns.
func (s *CooldownStore) Entries() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time)
	for name, ts := range s.load() {
		out[name] = time.Unix(0, int64(ts*1e9))
	}
	return out
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func (s *CooldownStore) load() map[string]float64 {
	entries := make(map[string]float64)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(errs.StateIO(err, "read %s", s.path)).Warn("Could not read cooldowns, starting empty")
		}
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.WithError(errs.StateIO(err, "decode %s", s.path)).Warn("Cooldown file is corrupt, starting empty")
		return make(map[string]float64)
	}
	if entries == nil {
		s.logger.WithError(errs.StateIO(nil, "%s holds no cooldown map", s.path)).Warn("Cooldown file is corrupt, starting empty")
		return make(map[string]float64)
	}
	return entries
}
