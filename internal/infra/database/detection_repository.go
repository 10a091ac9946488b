package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/patrickmn/go-cache"

	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/errs"
)

// Custom errors
var ErrDetectionNotFound = errors.New("detection not found")

const (
	imageCacheTTL     = 1 * time.Hour
	imageCacheCleanup = 10 * time.Minute

	detectionColumns = `id, date, time, begin_time, scientific_name, common_name,
	       confidence, clip_name, species_code`
)

// DetectionRepository reads the notes and image_caches tables written by BirdNET-Go.
type DetectionRepository struct {
	db      *sql.DB
	dialect Dialect
	images  *cache.Cache // scientific name -> image URL ("" for a cached miss)
}

func NewDetectionRepository(db *sql.DB, dialect Dialect) *DetectionRepository {
	return &DetectionRepository{
		db:      db,
		dialect: dialect,
		images:  cache.New(imageCacheTTL, imageCacheCleanup),
	}
}

var _ detection.Repository = (*DetectionRepository)(nil)

func (r *DetectionRepository) GetByID(ctx context.Context, id int64) (*detection.Detection, error) {
	query := r.dialect.Rebind(`SELECT ` + detectionColumns + ` FROM notes WHERE id = ?`)
	d, err := scanDetection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDetectionNotFound
		}
		return nil, errs.Store(err, "error getting detection %d", id)
	}
	return d, nil
}

func (r *DetectionRepository) GetLatest(ctx context.Context) (*detection.Detection, error) {
	query := `SELECT ` + detectionColumns + ` FROM notes ORDER BY id DESC LIMIT 1`
	d, err := scanDetection(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDetectionNotFound
		}
		return nil, errs.Store(err, "error getting latest detection")
	}
	return d, nil
}

func (r *DetectionRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM notes`).Scan(&id); err != nil {
		return 0, errs.Store(err, "error getting max detection id")
	}
	return id, nil
}

func (r *DetectionRepository) ListIDsAfter(ctx context.Context, id int64) ([]int64, error) {
	query := r.dialect.Rebind(`SELECT id FROM notes WHERE id > ? ORDER BY id ASC`)
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errs.Store(err, "error listing detections after %d", id)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var next int64
		if err := rows.Scan(&next); err != nil {
			return nil, errs.Store(err, "error scanning detection id")
		}
		ids = append(ids, next)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store(err, "error iterating detection ids")
	}
	return ids, nil
}

func (r *DetectionRepository) SpeciesCount(ctx context.Context, scientificName string) (int, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM notes WHERE scientific_name = ?`)
	var count int
	if err := r.db.QueryRowContext(ctx, query, scientificName).Scan(&count); err != nil {
		return 0, errs.Store(err, "error counting %s", scientificName)
	}
	return count, nil
}

func (r *DetectionRepository) SpeciesCountSince(ctx context.Context, scientificName string, since time.Time, beforeID int64) (int, error) {
	query := `SELECT COUNT(*) FROM notes WHERE scientific_name = ? AND begin_time >= ?`
	args := []any{scientificName, since}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&count); err != nil {
		return 0, errs.Store(err, "error counting %s since %s", scientificName, since.Format(time.RFC3339))
	}
	return count, nil
}

// CachedImageURL returns the newest image_caches URL of a species. Hits and
// misses are memoized for an hour; query failures are not.
func (r *DetectionRepository) CachedImageURL(ctx context.Context, scientificName string) (string, error) {
	if v, ok := r.images.Get(scientificName); ok {
		return v.(string), nil
	}

	query := r.dialect.Rebind(`SELECT url FROM image_caches WHERE scientific_name = ? ORDER BY cached_at DESC LIMIT 1`)
	var url sql.NullString
	err := r.db.QueryRowContext(ctx, query, scientificName).Scan(&url)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", errs.Store(err, "error getting cached image for %s", scientificName)
	}

	r.images.Set(scientificName, url.String, cache.DefaultExpiration)
	return url.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row rowScanner) (*detection.Detection, error) {
	var (
		d           detection.Detection
		beginTime   any
		clipName    sql.NullString
		speciesCode sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Date, &d.Time, &beginTime, &d.ScientificName, &d.CommonName,
		&d.Confidence, &clipName, &speciesCode); err != nil {
		return nil, err
	}
	d.BeginTime = parseTimestamp(beginTime)
	d.ClipName = clipName.String
	d.SpeciesCode = speciesCode.String
	return &d, nil
}

// timestampLayouts covers what BirdNET-Go writes through the different drivers,
// e.g. "2025-11-29 15:19:54.4447381-05:00".
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp converts a driver value into a time. Unparseable values fall
// back to the current time rather than dropping the detection.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimestampString(t)
	case []byte:
		return parseTimestampString(string(t))
	default:
		return time.Now()
	}
}

func parseTimestampString(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if len(s) >= 19 {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", s[:19], time.Local); err == nil {
			return t
		}
	}
	return time.Now()
}
