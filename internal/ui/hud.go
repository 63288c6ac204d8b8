package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a TTY display with a scrolling feed of bad sectors
// and lifecycle notices above a 2-line HUD that redraws in place.
type hudPresenter struct {
	w         io.Writer
	stats     stats.ReadTicker
	outputDir string // stripped from displayed paths
	verbose   bool

	// Internal state.
	hudDrawn     bool
	hudLineCount int // actual number of lines in the last HUD draw
	running      bool
	lastHUDDraw  time.Time
}

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan Event) error {
	// Fire first tick quickly to seed the ring buffer with initial speed data,
	// then switch to 1s interval.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw ticker for when no events are flowing (e.g., a slow device).
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			if p.running {
				p.maybeDrawHUD()
			}

		case <-redrawTicker.C:
			if p.running {
				p.drawHUD()
			}

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(1 * time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case AcquireStarted:
		p.println("%sacquiring%s %s  %s", ansiBold, ansiReset, ev.Path, FormatBytes(ev.Total))
		p.running = true

	case Progress:
		// The HUD reads the collector; nothing to print.

	case BadSector:
		p.println("✗  offset %d  %10s zero-filled  %s%s%s",
			ev.Offset, FormatBytes(ev.Size), ansiDim, errText(ev.Error), ansiReset)

	case AcquireCompleted:
		p.running = false
		p.clearHUD()
		p.println("✓  %s  %10s", p.styledPath(ev.Path), FormatBytes(ev.Size))

	case AcquireAborted:
		p.running = false
		p.clearHUD()
		p.println("✗  aborted after %s: %s", FormatBytes(ev.Size), errText(ev.Error))

	case WriteBlockApplied:
		p.println("%swrite-block applied on %s%s", ansiDim, ev.Path, ansiReset)

	case WriteBlockFailed:
		p.println("✗  write-block NOT applied on %s: %s", ev.Path, errText(ev.Error))

	case WriteBlockReleased:
		if p.verbose {
			p.println("%swrite-block released on %s%s", ansiDim, ev.Path, ansiReset)
		}

	case VerifyStarted:
		p.println("%sverifying image...%s", ansiDim, ansiReset)

	case VerifyOK:
		p.println("✓  %s  verified", p.styledPath(ev.Path))

	case VerifyFailed:
		p.println("✗  %s  DIGEST MISMATCH", p.styledPath(ev.Path))

	case StepStarted:
		p.println("%s%s...%s", ansiDim, ev.Step, ansiReset)

	case StepCompleted:
		p.println("✓  %s  %s  %s", ev.Step, p.styledPath(ev.Path), FormatDuration(ev.Elapsed))

	case StepFailed:
		p.println("✗  %s  %s", ev.Step, errText(ev.Error))
	}
}

// println writes a feed line above the HUD, redrawing the HUD after it
// while an acquisition is running.
func (p *hudPresenter) println(format string, args ...any) {
	p.clearHUD()
	fmt.Fprintf(p.w, format+"\n", args...)
	if p.running {
		p.drawHUD() // always redraw HUD after feed line
	}
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	now := time.Now()
	if now.Sub(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()

	// Clear previous HUD if drawn.
	p.clearHUD()

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesProcessed) / float64(snap.BytesTotal)
	}

	speed := p.stats.RollingSpeed(10)
	eta := p.stats.ETA()

	// Line 1: throughput sparkline + speed + byte totals.
	sparkData := p.stats.SparklineData(sparklineWidth)
	spark := Sparkline(sparkData, sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s / %s\n",
		spark, FormatRate(speed),
		FormatBytes(snap.BytesProcessed), FormatBytes(snap.BytesTotal))

	// Line 2: progress bar (▪/□) + bad sectors + eta.
	bar := ProgressBar(pct, progressBarWidth)
	fmt.Fprintf(p.w, " %6.2f%%  %s   bad sectors %s   eta %s\n",
		pct*100, bar, FormatCount(snap.BadSectors), FormatETA(eta))

	p.hudDrawn = true
	p.hudLineCount = 2
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath returns the path relative to the output directory with the
// directory portion dimmed, making the file name stand out.
func (p *hudPresenter) styledPath(path string) string {
	path = StripRoot(p.outputDir, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s/%s%s", ansiDim, dir, ansiReset, base)
}

// StripRoot removes a root prefix from a path, returning a clean relative path.
func StripRoot(root, path string) string {
	if root == "" {
		return path
	}
	// Ensure root ends with separator for clean stripping.
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	if strings.HasPrefix(path, root) {
		return path[len(root):]
	}
	return path
}
