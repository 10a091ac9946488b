package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/errs"
)

// SummaryForPeriod returns the number of detections since the given time and the
// per-species aggregates, busiest species first.
func (r *DetectionRepository) SummaryForPeriod(ctx context.Context, since time.Time) (int, []detection.SpeciesSummary, error) {
	var total int
	countQuery := r.dialect.Rebind(`SELECT COUNT(*) FROM notes WHERE begin_time >= ?`)
	if err := r.db.QueryRowContext(ctx, countQuery, since).Scan(&total); err != nil {
		return 0, nil, errs.Store(err, "error counting detections since %s", since.Format(time.RFC3339))
	}

	query := r.dialect.Rebind(`
		SELECT scientific_name, MIN(common_name), COUNT(*) AS cnt,
		       AVG(confidence), MAX(confidence)
		FROM notes
		WHERE begin_time >= ?
		GROUP BY scientific_name
		ORDER BY cnt DESC, scientific_name ASC`)
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return 0, nil, errs.Store(err, "error summarizing species since %s", since.Format(time.RFC3339))
	}
	defer rows.Close()

	species := make([]detection.SpeciesSummary, 0)
	for rows.Next() {
		var s detection.SpeciesSummary
		if err := rows.Scan(&s.ScientificName, &s.CommonName, &s.Count, &s.AvgConfidence, &s.MaxConfidence); err != nil {
			return 0, nil, errs.Store(err, "error scanning species summary")
		}
		species = append(species, s)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, errs.Store(err, "error iterating species summary")
	}
	return total, species, nil
}

// HourlyBreakdown counts detections per hour of day (0-23), taken from the
// recognizer's local time column.
func (r *DetectionRepository) HourlyBreakdown(ctx context.Context, since time.Time) (map[int]int, error) {
	counts, err := r.countBy(ctx, "time", since)
	if err != nil {
		return nil, err
	}

	hourly := make(map[int]int)
	for clock, n := range counts {
		hourStr, _, _ := strings.Cut(clock, ":")
		hour, err := strconv.Atoi(hourStr)
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		hourly[hour] += n
	}
	return hourly, nil
}

// DailyBreakdown counts detections per calendar date (YYYY-MM-DD).
func (r *DetectionRepository) DailyBreakdown(ctx context.Context, since time.Time) (map[string]int, error) {
	return r.countBy(ctx, "date", since)
}

// countBy groups detections since the given time by one of the text columns.
func (r *DetectionRepository) countBy(ctx context.Context, column string, since time.Time) (map[string]int, error) {
	query := r.dialect.Rebind(`SELECT ` + column + `, COUNT(*) FROM notes WHERE begin_time >= ? GROUP BY ` + column)
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, errs.Store(err, "error grouping detections by %s", column)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, errs.Store(err, "error scanning %s breakdown", column)
		}
		counts[key] += n
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store(err, "error iterating %s breakdown", column)
	}
	return counts, nil
}
