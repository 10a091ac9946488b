// Package alert describes the outbound alerts and the sinks that deliver them.
package alert

import (
	"context"
	"time"

	"github.com/HurleySk/robo-birder/internal/domain/detection"
)

// Kind labels an alert for logging and metrics.
type Kind string

const (
	KindNewSpecies Kind = "new_species"
	KindDetection  Kind = "detection"
	KindSummary    Kind = "summary"
	KindTest       Kind = "test"
)

// NewSpecies announces a first-ever / first-of-year / first-of-season sighting.
type NewSpecies struct {
	Detection  *detection.Detection
	Reason     string // e.g. "First ever sighting!"
	ImageURL   string
	WebhookURL string // Optional override of the default webhook
}

// Sighting is a regular realtime detection alert.
type Sighting struct {
	Detection *detection.Detection
	ImageURL  string
}

// Summary is the report produced by a scheduled summary job.
type Summary struct {
	Name            string
	TotalDetections int
	Species         []detection.SpeciesSummary // Ordered by count, descending
	TopN            int
	Hourly          map[int]int    // nil when not requested
	Daily           map[string]int // nil when not requested
	LookbackMinutes int
	GeneratedAt     time.Time
	WebhookURL      string
}

// Dispatcher delivers alerts. A nil error means the alert was delivered.
type Dispatcher interface {
	SendNewSpecies(ctx context.Context, a *NewSpecies) error
	SendDetection(ctx context.Context, a *Sighting) error
	SendSummary(ctx context.Context, s *Summary) error
	SendTest(ctx context.Context) error
}

// Sink is one delivery channel (Discord, Telegram, push URLs).
type Sink interface {
	Dispatcher
	Name() string
}
