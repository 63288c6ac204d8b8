package tui

import (
	"fmt"
	"strings"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
)

// rateView is the throughput dashboard: a big speed number, a full-width
// sparkline and the acquisition counters.
type rateView struct{}

func newRateView() rateView { return rateView{} }

func (r *rateView) view(width int, snap stats.Snapshot, collector stats.Reader) string {
	if width < 20 {
		width = 20
	}

	var b strings.Builder

	// Big throughput number.
	speed := collector.RollingSpeed(5)
	b.WriteString("  " + styleBigNumber.Render(ui.FormatRate(speed)))
	b.WriteString("\n\n")

	// Full-width sparkline (60-second history).
	sparkWidth := max(width-4, 10)
	spark := ui.Sparkline(collector.SparklineData(sparkWidth), sparkWidth)
	b.WriteString("  " + styleSparkline.Render(spark))
	b.WriteString("\n\n")

	// Progress bar across the same width.
	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesProcessed) / float64(snap.BytesTotal)
	}
	b.WriteString("  " + r.renderBar(pct, sparkWidth))
	b.WriteString("\n\n")

	statLine := fmt.Sprintf("  %s   %s   %s",
		styleSpeed.Render(fmt.Sprintf("%.2f%%", pct*100)),
		styleMuted.Render(fmt.Sprintf("%s / %s",
			ui.FormatBytes(snap.BytesProcessed), ui.FormatBytes(snap.BytesTotal))),
		styleMuted.Render("eta "+ui.FormatETA(collector.ETA())),
	)
	b.WriteString(statLine)
	b.WriteByte('\n')

	badStyle := styleIconDone
	if snap.BadSectors > 0 {
		badStyle = styleError
	}
	fmt.Fprintf(&b, "  %s   %s\n",
		badStyle.Render(fmt.Sprintf("bad sectors %s", ui.FormatCount(snap.BadSectors))),
		styleMuted.Render(fmt.Sprintf("zero-filled %s", ui.FormatBytes(snap.BytesZeroFilled))),
	)

	return b.String()
}

func (r *rateView) renderBar(pct float64, width int) string {
	bar := ui.ProgressBar(pct, width)
	filled := min(max(int(pct*float64(width)), 0), width)
	runes := []rune(bar)
	return styleProgressFilled.Render(string(runes[:filled])) + styleProgressEmpty.Render(string(runes[filled:]))
}
