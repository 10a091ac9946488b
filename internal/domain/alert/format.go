package alert

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Footer is appended to every alert.
const Footer = "Robo-Birder"

// ClockTime renders t as "3:04 PM".
func ClockTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// Percent renders a 0..1 confidence as "93%".
func Percent(confidence float64) string {
	return fmt.Sprintf("%.0f%%", confidence*100)
}

// ReportTitle picks the report title and the period description from the lookback window.
func ReportTitle(lookbackMinutes int, now time.Time) (title, period string) {
	switch {
	case lookbackMinutes <= 60:
		return "Hourly Bird Report", now.Format("3") + ":00 " + now.Format("PM")
	case lookbackMinutes <= 1440:
		return "Daily Bird Report", now.Format("Jan 02, 2006")
	default:
		return fmt.Sprintf("%d-Day Bird Report", lookbackMinutes/1440), now.Format("Jan 02, 2006")
	}
}

// SpeciesList renders the top species of a summary. Hourly reports with at most
// five species use a compact layout, everything else a numbered list.
func SpeciesList(s *Summary, bold func(string) string) string {
	top := s.Species
	if s.TopN >= 0 && len(top) > s.TopN {
		top = top[:s.TopN]
	}

	if s.LookbackMinutes <= 60 && len(top) <= 5 {
		var main, other []string
		for i, sp := range top {
			if i < 3 {
				main = append(main, fmt.Sprintf("%s (%d)", bold(sp.CommonName), sp.Count))
			} else {
				other = append(other, fmt.Sprintf("%s (%d)", sp.CommonName, sp.Count))
			}
		}
		text := strings.Join(main, "\n")
		if len(other) > 0 {
			text += "\n" + strings.Join(other, " | ")
		}
		return text
	}

	lines := make([]string, 0, len(top)+1)
	for i, sp := range top {
		lines = append(lines, fmt.Sprintf("%d. %s (%d)", i+1, bold(sp.CommonName), sp.Count))
	}
	text := strings.Join(lines, "\n")
	if remaining := len(s.Species) - len(top); remaining > 0 {
		text += fmt.Sprintf("\n*...and %d more species*", remaining)
	}
	return text
}

// PeakHours lists the hours whose count reaches 75% of the busiest hour,
// merging consecutive hours into ranges ("6 AM-9 AM, 5 PM").
func PeakHours(hourly map[int]int) string {
	if len(hourly) == 0 {
		return ""
	}

	maxCount := 0
	for _, c := range hourly {
		maxCount = max(maxCount, c)
	}
	threshold := float64(maxCount) * 0.75

	var peaks []int
	for _, h := range slices.Sorted(maps.Keys(hourly)) {
		if float64(hourly[h]) >= threshold {
			peaks = append(peaks, h)
		}
	}
	if len(peaks) == 0 {
		return ""
	}

	var ranges []string
	start, end := peaks[0], peaks[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, hourLabel(start))
		} else {
			ranges = append(ranges, hourLabel(start)+"-"+hourLabel(end+1))
		}
	}
	for _, h := range peaks[1:] {
		if h == end+1 {
			end = h
			continue
		}
		flush()
		start, end = h, h
	}
	flush()

	return strings.Join(ranges, ", ")
}

func hourLabel(h int) string {
	h %= 24
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}
