package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/ui"
)

type entryKind int

const (
	entryInfo entryKind = iota
	entryDone
	entryWarn
	entryFailed
)

// logEntry is one line of the lifecycle feed.
type logEntry struct {
	kind entryKind
	text string
	path string // rendered after text, relative to the output directory
	time time.Time
}

type badSectorEntry struct {
	offset int64
	length int64
	err    string
	time   time.Time
}

type feedView struct {
	entries      []logEntry       // unbounded history
	badSectors   []badSectorEntry // never evicted
	outputDir    string
	scrollOffset int  // viewport offset into entries
	autoScroll   bool // follow new entries
}

func newFeedView(outputDir string) feedView {
	return feedView{outputDir: outputDir, autoScroll: true}
}

func (f *feedView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.AcquireStarted:
		f.add(entryInfo, fmt.Sprintf("acquiring %s  %s", ev.Path, ui.FormatBytes(ev.Total)), "", ev.Timestamp)

	case event.BadSector:
		f.badSectors = append(f.badSectors, badSectorEntry{
			offset: ev.Offset,
			length: ev.Size,
			err:    errText(ev.Error),
			time:   ev.Timestamp,
		})
		f.add(entryFailed, fmt.Sprintf("bad sector at offset %d, %s zero-filled", ev.Offset, ui.FormatBytes(ev.Size)), "", ev.Timestamp)

	case event.AcquireCompleted:
		f.add(entryDone, fmt.Sprintf("image complete  %s  %s  ", ui.FormatBytes(ev.Size), ui.FormatDuration(ev.Elapsed)), ev.Path, ev.Timestamp)

	case event.AcquireAborted:
		f.add(entryFailed, "aborted: "+errText(ev.Error), "", ev.Timestamp)

	case event.WriteBlockApplied:
		f.add(entryDone, "write-block applied on "+ev.Path, "", ev.Timestamp)

	case event.WriteBlockFailed:
		f.add(entryWarn, "write-block NOT applied on "+ev.Path, "", ev.Timestamp)

	case event.WriteBlockReleased:
		f.add(entryInfo, "write-block released on "+ev.Path, "", ev.Timestamp)

	case event.VerifyStarted:
		f.add(entryInfo, "verifying  ", ev.Path, ev.Timestamp)

	case event.VerifyOK:
		f.add(entryDone, "verified  ", ev.Path, ev.Timestamp)

	case event.VerifyFailed:
		f.add(entryFailed, "DIGEST MISMATCH  ", ev.Path, ev.Timestamp)

	case event.StepStarted:
		f.add(entryInfo, ev.Step+"...", "", ev.Timestamp)

	case event.StepCompleted:
		f.add(entryDone, ev.Step+"  ", ev.Path, ev.Timestamp)

	case event.StepFailed:
		f.add(entryFailed, ev.Step+" failed: "+errText(ev.Error), "", ev.Timestamp)
	}
}

func (f *feedView) add(kind entryKind, text, path string, at time.Time) {
	f.entries = append(f.entries, logEntry{kind: kind, text: text, path: path, time: at})
	// If autoScroll, keep viewport pinned to bottom.
	// The actual clamping happens in view().
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

// scrollToTop jumps to the first entry.
func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the most recent entry and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int) string {
	if width < 20 {
		width = 20
	}

	// Bad sectors are pinned at the bottom, capped at 5 lines.
	maxBad := 5
	badCount := min(len(f.badSectors), maxBad)

	dividers := 0
	if badCount > 0 {
		dividers++
	}
	if len(f.entries) > 0 {
		dividers++
	}

	feedHeight := max(height-badCount-dividers, 1)

	// Clamp scroll offset.
	maxOffset := max(len(f.entries)-feedHeight, 0)
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	f.scrollOffset = min(max(f.scrollOffset, 0), maxOffset)

	var b strings.Builder

	if lines := f.renderEntries(feedHeight); lines != "" {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ events (%d)", len(f.entries))))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	if lines := f.renderBadSectors(badCount); lines != "" {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ bad sectors (%d)", len(f.badSectors))))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	return b.String()
}

func (f *feedView) renderEntries(viewportHeight int) string {
	if len(f.entries) == 0 {
		return ""
	}

	end := min(f.scrollOffset+viewportHeight, len(f.entries))

	var b strings.Builder
	for _, e := range f.entries[f.scrollOffset:end] {
		var icon, text string
		switch e.kind {
		case entryDone:
			icon, text = styleIconDone.Render("✓"), e.text
		case entryWarn:
			icon, text = styleWarning.Render("!"), styleWarning.Render(e.text)
		case entryFailed:
			icon, text = styleIconFailed.Render("✗"), styleError.Render(e.text)
		default:
			icon, text = styleIconInfo.Render("⟩"), styleMuted.Render(e.text)
		}
		line := fmt.Sprintf("  %s  %s", icon, text)
		if e.path != "" {
			line += f.styledPath(e.path)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderBadSectors(maxLines int) string {
	if len(f.badSectors) == 0 || maxLines <= 0 {
		return ""
	}

	var b strings.Builder
	// Show the most recent faults (tail).
	start := max(len(f.badSectors)-maxLines, 0)
	for _, e := range f.badSectors[start:] {
		line := fmt.Sprintf("  %s  %s  %s  %s",
			styleIconFailed.Render("✗"),
			styleOffset.Render(fmt.Sprintf("%d", e.offset)),
			styleMuted.Render(ui.FormatBytes(e.length)),
			styleError.Render(e.err),
		)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) styledPath(path string) string {
	path = ui.StripRoot(f.outputDir, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir+"/") + styleFilePath.Render(base)
}

func errText(err error) string {
	if err == nil {
		return "error"
	}
	return err.Error()
}
