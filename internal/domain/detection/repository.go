package detection

import (
	"context"
	"time"
)

// Repository is the read-only view of the detection database.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Detection, error)
	GetLatest(ctx context.Context) (*Detection, error)
	MaxID(ctx context.Context) (int64, error)
	ListIDsAfter(ctx context.Context, id int64) ([]int64, error) // Ascending

	History
	ImageLookup

	// Aggregates for summary reports, all restricted to begin_time >= since.
	SummaryForPeriod(ctx context.Context, since time.Time) (int, []SpeciesSummary, error)
	HourlyBreakdown(ctx context.Context, since time.Time) (map[int]int, error)
	DailyBreakdown(ctx context.Context, since time.Time) (map[string]int, error)
}

// History answers species occurrence questions for the new-species triggers.
type History interface {
	SpeciesCount(ctx context.Context, scientificName string) (int, error)
	// SpeciesCountSince counts detections with begin_time >= since. A positive
	// beforeID further restricts the count to IDs strictly below it.
	SpeciesCountSince(ctx context.Context, scientificName string, since time.Time, beforeID int64) (int, error)
}

// ImageLookup resolves the cached image URL of a species, "" when none is cached.
type ImageLookup interface {
	CachedImageURL(ctx context.Context, scientificName string) (string, error)
}
