package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

const countBarWidth = 30

// FormatPrediction renders one labelled prediction on a line.
func FormatPrediction(name string, p model.Prediction) string {
	if !p.Known() {
		return fmt.Sprintf("%s  %s", name, SubtleStyle.Render("?"))
	}
	return fmt.Sprintf("%s  %s  %s",
		name,
		DigitStyle.Render(p.String()),
		SubtleStyle.Render(fmt.Sprintf("%5.1f%%", p.Confidence*100)))
}

// RenderHistory renders records newest first as a table.
func RenderHistory(records []service.PredictionRecord) string {
	if len(records) == 0 {
		return FormatInfo("No predictions recorded yet")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-19s  %-8s  %5s  %10s  %-10s", "Time", "Session", "Digit", "Confidence", "Trigger")))
	b.WriteByte('\n')
	for _, r := range records {
		session := r.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(&b, "%-19s  %-8s  %5d  %9.1f%%  %-10s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			session,
			r.Label,
			r.Confidence*100,
			r.Trigger)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCounts renders the per-digit summary with a bar per digit.
func RenderCounts(counts []service.LabelCount) string {
	total := 0
	largest := 0
	for _, c := range counts {
		total += c.Count
		largest = max(largest, c.Count)
	}
	if total == 0 {
		return ""
	}

	var b strings.Builder
	for _, c := range counts {
		bar := strings.Repeat("█", c.Count*countBarWidth/largest)
		fmt.Fprintf(&b, "%s  %5d  %5.1f%%  %s\n",
			DigitStyle.Render(fmt.Sprint(c.Label)),
			c.Count,
			c.AvgConfidence*100,
			InfoStyle.Render(bar))
	}
	fmt.Fprintf(&b, "%s %d predictions", ChartIcon, total)
	return RenderBox("Digits", b.String())
}
