package alert

import (
	"fmt"
	"strings"
)

// Plain-text renderings used by sinks without rich embeds.

func NewSpeciesText(a *NewSpecies) (title, body string) {
	d := a.Detection
	title = "NEW SPECIES: " + d.CommonName
	body = fmt.Sprintf("%s (%s)\n%s\nConfidence: %s\nTime: %s",
		d.CommonName, d.ScientificName, a.Reason, Percent(d.Confidence), ClockTime(d.BeginTime))
	return title, body
}

func SightingText(a *Sighting) (title, body string) {
	d := a.Detection
	return d.CommonName, fmt.Sprintf("%s (%s)\nConfidence: %s\nTime: %s",
		d.CommonName, d.ScientificName, Percent(d.Confidence), ClockTime(d.BeginTime))
}

func SummaryText(s *Summary) (title, body string) {
	title, period := ReportTitle(s.LookbackMinutes, s.GeneratedAt)
	if s.TotalDetections == 0 {
		return title, period + "\nNo birds were detected during this period."
	}

	var b strings.Builder
	b.WriteString(period)
	fmt.Fprintf(&b, "\n%d detections | %d species", s.TotalDetections, len(s.Species))
	if list := SpeciesList(s, plain); list != "" {
		b.WriteString("\n\n" + list)
	}
	if peaks := PeakHours(s.Hourly); peaks != "" {
		b.WriteString("\n\nPeak Activity: " + peaks)
	}
	return title, b.String()
}

func TestText() (title, body string) {
	return "Robo-Birder Test", "If you see this message, your notifications are configured correctly!"
}

func plain(s string) string { return s }
