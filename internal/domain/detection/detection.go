package detection

import (
	"time"
)

// Detection is one recognized-species event written by BirdNET-Go into the notes table.
type Detection struct {
	ID             int64
	Date           string // YYYY-MM-DD as stored by the recognizer
	Time           string // HH:MM:SS as stored by the recognizer
	BeginTime      time.Time
	ScientificName string
	CommonName     string
	Confidence     float64 // 0..1
	ClipName       string  // Optional audio clip reference
	SpeciesCode    string
}

// Matches reports whether name equals the common or scientific name.
func (d *Detection) Matches(name string) bool {
	return name == d.CommonName || name == d.ScientificName
}

// SpeciesSummary aggregates the detections of one species over a period.
type SpeciesSummary struct {
	ScientificName string
	CommonName     string
	Count          int
	AvgConfidence  float64
	MaxConfidence  float64
	ImageURL       string
}
