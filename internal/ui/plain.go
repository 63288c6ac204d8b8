package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// plainPresenter outputs one line per lifecycle event to stdout and a
// periodic progress line to stderr. Used when stderr is not a TTY.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      stats.Reader
	outputDir  string
	interval   time.Duration
	noProgress bool
	verbose    bool

	last     Event // most recent Progress sample
	haveLast bool
	running  bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	interval := p.interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			if p.running {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case AcquireStarted:
		p.running = true
		fmt.Fprintf(p.w, "acquiring %s  %s\n", ev.Path, FormatBytes(ev.Total))
	case Progress:
		p.last = ev
		p.haveLast = true
	case BadSector:
		fmt.Fprintf(p.w, "[!] bad sector at offset %d  %s zero-filled  %s\n",
			ev.Offset, FormatBytes(ev.Size), errText(ev.Error))
	case AcquireCompleted:
		p.running = false
		p.last = ev
		p.last.MBps = stats.Compute(ev.Size, ev.Total, ev.Elapsed, ev.BadSectors).MBps
		p.haveLast = true
		p.printProgress()
		fmt.Fprintf(p.w, "image: %s  %s  %s\n",
			StripRoot(p.outputDir, ev.Path), FormatBytes(ev.Size), FormatDuration(ev.Elapsed))
	case AcquireAborted:
		p.running = false
		fmt.Fprintf(p.w, "aborted after %s: %s\n", FormatBytes(ev.Size), errText(ev.Error))
	case WriteBlockApplied:
		fmt.Fprintf(p.w, "write-block applied on %s\n", ev.Path)
	case WriteBlockFailed:
		fmt.Fprintf(p.w, "[!] write-block NOT applied on %s: %s\n", ev.Path, errText(ev.Error))
	case WriteBlockReleased:
		if p.verbose {
			fmt.Fprintf(p.w, "write-block released on %s\n", ev.Path)
		}
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyOK:
		fmt.Fprintf(p.w, "verified: %s\n", StripRoot(p.outputDir, ev.Path))
	case VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", StripRoot(p.outputDir, ev.Path))
	case StepStarted:
		fmt.Fprintf(p.w, "%s...\n", ev.Step)
	case StepCompleted:
		fmt.Fprintf(p.w, "%s: %s  %s\n", ev.Step, StripRoot(p.outputDir, ev.Path), FormatDuration(ev.Elapsed))
	case StepFailed:
		fmt.Fprintf(p.w, "%s failed: %s\n", ev.Step, errText(ev.Error))
	}
}

func (p *plainPresenter) printProgress() {
	if p.noProgress || !p.haveLast {
		return
	}
	fmt.Fprintf(p.errW, "[+] Progress: %.2f%% | %s | Bad Sectors: %d\n",
		p.last.Percent, FormatMBps(p.last.MBps), p.last.BadSectors)
}

func (p *plainPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	return CompletionSummary(p.stats.Snapshot())
}

func errText(err error) string {
	if err == nil {
		return "error"
	}
	return err.Error()
}
